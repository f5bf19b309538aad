// build.go compiles inferred domain.Relations into a domain.Cluster: the
// markets a relation set spans, plus the linear constraints a Relation
// implies over those markets' probability-mass variables (index i of a
// constraint's coefficients corresponds to the cluster's sorted
// Markets[i], per domain.Cluster's own invariant).
package cluster

import (
	"fmt"
	"sort"
	"time"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/pkg/ids"
)

// CompileCluster builds a domain.Cluster from a set of relations that all
// pertain to the same logical group of markets. Markets is derived as the
// sorted union of every market any relation references; callers that
// already know the full member set (e.g. a relation inference pass that
// grouped relations by connected component) don't need to list it
// separately.
func CompileCluster(id ids.ClusterId, relations []domain.Relation, now time.Time) (domain.Cluster, error) {
	markets := unionMarkets(relations)
	if len(markets) == 0 {
		return domain.Cluster{}, fmt.Errorf("compile cluster %s: no markets referenced", id)
	}

	index := make(map[ids.MarketId]int, len(markets))
	for i, m := range markets {
		index[m] = i
	}

	constraints := make([]domain.Constraint, 0, len(relations))
	for _, rel := range relations {
		con, err := compileConstraint(rel, index, len(markets))
		if err != nil {
			return domain.Cluster{}, fmt.Errorf("compile cluster %s: %w", id, err)
		}
		constraints = append(constraints, con)
	}

	c := domain.Cluster{
		ID:          id,
		Markets:     markets,
		Relations:   relations,
		Constraints: constraints,
		UpdatedAt:   now,
	}
	if err := c.Validate(); err != nil {
		return domain.Cluster{}, err
	}
	return c, nil
}

// unionMarkets returns the sorted, deduplicated set of every market
// referenced by any of the given relations' kinds.
func unionMarkets(relations []domain.Relation) []ids.MarketId {
	seen := make(map[ids.MarketId]struct{})
	for _, rel := range relations {
		for _, m := range rel.Kind.MarketIDs() {
			seen[m] = struct{}{}
		}
	}
	out := make([]ids.MarketId, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// compileConstraint turns one relation's kind into a Constraint whose
// coefficient vector is indexed per index, the cluster's market→position
// map.
//
//   - Implies{A, B}:              μ_A - μ_B ≤ 0   (A can't outrank B)
//   - MutuallyExclusive{M...}:    Σ μ_i ≤ 1
//   - ExactlyOne{M...}:           Σ μ_i = 1
//   - Linear{terms, sense, rhs}:  Σ coeff_i * μ_i {≤,≥,=} rhs
func compileConstraint(rel domain.Relation, index map[ids.MarketId]int, n int) (domain.Constraint, error) {
	coeffs := make([]float64, n)

	switch k := rel.Kind.(type) {
	case domain.Implies:
		ifIdx, ok := index[k.IfYes]
		if !ok {
			return domain.Constraint{}, fmt.Errorf("implies: unknown market %s", k.IfYes)
		}
		thenIdx, ok := index[k.ThenYes]
		if !ok {
			return domain.Constraint{}, fmt.Errorf("implies: unknown market %s", k.ThenYes)
		}
		coeffs[ifIdx] = 1
		coeffs[thenIdx] = -1
		return domain.Constraint{Coefficients: coeffs, Sense: domain.SenseLessEqual, RHS: 0}, nil

	case domain.MutuallyExclusive:
		if err := setOnes(coeffs, k.Markets, index); err != nil {
			return domain.Constraint{}, fmt.Errorf("mutually_exclusive: %w", err)
		}
		return domain.Constraint{Coefficients: coeffs, Sense: domain.SenseLessEqual, RHS: 1}, nil

	case domain.ExactlyOne:
		if err := setOnes(coeffs, k.Markets, index); err != nil {
			return domain.Constraint{}, fmt.Errorf("exactly_one: %w", err)
		}
		return domain.Constraint{Coefficients: coeffs, Sense: domain.SenseEqual, RHS: 1}, nil

	case domain.Linear:
		for _, term := range k.Terms {
			idx, ok := index[term.MarketID]
			if !ok {
				return domain.Constraint{}, fmt.Errorf("linear: unknown market %s", term.MarketID)
			}
			coeffs[idx] += term.Coefficient
		}
		return domain.Constraint{Coefficients: coeffs, Sense: k.Sense, RHS: k.RHS}, nil

	default:
		return domain.Constraint{}, fmt.Errorf("unrecognized relation kind %T", rel.Kind)
	}
}

func setOnes(coeffs []float64, markets []ids.MarketId, index map[ids.MarketId]int) error {
	for _, m := range markets {
		idx, ok := index[m]
		if !ok {
			return fmt.Errorf("unknown market %s", m)
		}
		coeffs[idx] = 1
	}
	return nil
}
