package inference

import (
	"context"

	"github.com/edgelord/edgelord/internal/domain"
)

// MockInferrer is a canned RelationInferrer for tests and for running the
// engine without a configured LLM provider.
type MockInferrer struct {
	Relations []domain.Relation
	Err       error
}

// Infer returns the canned Relations/Err, ignoring markets.
func (m *MockInferrer) Infer(ctx context.Context, markets []domain.Market) ([]domain.Relation, error) {
	return m.Relations, m.Err
}
