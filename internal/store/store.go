// Package store provides crash-safe position persistence using JSON files.
//
// Each position is stored as a separate file: pos_<positionID>.json.
// Writes use atomic file replacement (write to .tmp, then rename) to
// prevent corruption from partial writes or crashes mid-save. The
// orchestrator calls SavePosition after every execution outcome, and
// LoadAll on startup to restore previously tracked positions.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/pkg/ids"
)

// Store persists positions to JSON files in a designated directory.
// All operations are mutex-protected to prevent concurrent file corruption.
type Store struct {
	dir string     // directory containing pos_*.json files
	mu  sync.Mutex // serializes all file operations
}

// Open creates a store backed by the given directory.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Close is a no-op for file-based storage.
func (s *Store) Close() error {
	return nil
}

// positionDTO is the JSON-serializable shape of a domain.Position. Status
// is a closed-interface sum type with no native JSON encoding, so it is
// flattened into a discriminator plus the fields the matching variant
// carries.
type positionDTO struct {
	ID               ids.PositionId          `json:"id"`
	MarketID         ids.MarketId            `json:"market_id"`
	Legs             []domain.OpportunityLeg `json:"legs"`
	EntryCost        domain.Money            `json:"entry_cost"`
	GuaranteedPayout domain.Money            `json:"guaranteed_payout"`
	OpenedAt         time.Time               `json:"opened_at"`
	TradeID          *string                 `json:"trade_id,omitempty"`

	Status         string        `json:"status"` // "open", "partial_fill", "closed"
	PartialFilled  []ids.TokenId `json:"partial_filled,omitempty"`
	PartialMissing []ids.TokenId `json:"partial_missing,omitempty"`
	ClosedPnL      *domain.Money `json:"closed_pnl,omitempty"`
}

func toDTO(pos domain.Position) positionDTO {
	dto := positionDTO{
		ID:               pos.ID,
		MarketID:         pos.MarketID,
		Legs:             pos.Legs,
		EntryCost:        pos.EntryCost,
		GuaranteedPayout: pos.GuaranteedPayout,
		OpenedAt:         pos.OpenedAt,
		TradeID:          pos.TradeID,
	}
	switch st := pos.Status.(type) {
	case domain.StatusOpen:
		dto.Status = "open"
	case domain.StatusPartialFill:
		dto.Status = "partial_fill"
		dto.PartialFilled = st.Filled
		dto.PartialMissing = st.Missing
	case domain.StatusClosed:
		dto.Status = "closed"
		pnl := st.PnL
		dto.ClosedPnL = &pnl
	default:
		dto.Status = "open"
	}
	return dto
}

func fromDTO(dto positionDTO) domain.Position {
	pos := domain.Position{
		ID:               dto.ID,
		MarketID:         dto.MarketID,
		Legs:             dto.Legs,
		EntryCost:        dto.EntryCost,
		GuaranteedPayout: dto.GuaranteedPayout,
		OpenedAt:         dto.OpenedAt,
		TradeID:          dto.TradeID,
	}
	switch dto.Status {
	case "partial_fill":
		pos.Status = domain.StatusPartialFill{Filled: dto.PartialFilled, Missing: dto.PartialMissing}
	case "closed":
		pnl := domain.Zero()
		if dto.ClosedPnL != nil {
			pnl = *dto.ClosedPnL
		}
		pos.Status = domain.StatusClosed{PnL: pnl}
	default:
		pos.Status = domain.StatusOpen{}
	}
	return pos
}

func (s *Store) path(id ids.PositionId) string {
	return filepath.Join(s.dir, "pos_"+id.String()+".json")
}

// SavePosition atomically persists pos. It writes to a .tmp file first,
// then renames over the target so the file is never left in a partial
// state (crash-safe).
func (s *Store) SavePosition(pos domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(toDTO(pos))
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}

	path := s.path(pos.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write position: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadPosition restores one position from disk. Returns nil, nil if no
// saved position exists under id.
func (s *Store) LoadPosition(id ids.PositionId) (*domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read position: %w", err)
	}

	var dto positionDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("unmarshal position: %w", err)
	}
	pos := fromDTO(dto)
	return &pos, nil
}

// LoadAll restores every position saved under the store's directory, for
// restoring state on startup.
func (s *Store) LoadAll() ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}

	var out []domain.Position
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "pos_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var dto positionDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", name, err)
		}
		out = append(out, fromDTO(dto))
	}
	return out, nil
}
