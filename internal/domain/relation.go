package domain

import (
	"time"

	"github.com/edgelord/edgelord/pkg/ids"
)

// Sense is the comparison operator of a linear constraint.
type Sense int

const (
	SenseLessEqual Sense = iota
	SenseGreaterEqual
	SenseEqual
)

// LinearTerm is one coefficient*variable term of a linear relation, where
// the variable is identified by the market it represents within whatever
// cluster the relation is later compiled into.
type LinearTerm struct {
	MarketID    ids.MarketId
	Coefficient float64
}

// RelationKind is a closed sum type over the shapes of inferred logical
// relation the system understands. MarketIDs returns every market the
// relation references, in declaration order.
type RelationKind interface {
	relationKind()
	MarketIDs() []ids.MarketId
}

// Implies models "if market IfYes resolves Yes, then market ThenYes
// resolves Yes".
type Implies struct {
	IfYes   ids.MarketId
	ThenYes ids.MarketId
}

func (Implies) relationKind() {}

// MarketIDs returns the implying market followed by the implied one.
func (i Implies) MarketIDs() []ids.MarketId {
	return []ids.MarketId{i.IfYes, i.ThenYes}
}

// MutuallyExclusive models "at most one of these markets resolves Yes".
type MutuallyExclusive struct {
	Markets []ids.MarketId
}

func (MutuallyExclusive) relationKind() {}

// MarketIDs returns the mutually exclusive markets.
func (m MutuallyExclusive) MarketIDs() []ids.MarketId { return m.Markets }

// ExactlyOne models "exactly one of these markets resolves Yes".
type ExactlyOne struct {
	Markets []ids.MarketId
}

func (ExactlyOne) relationKind() {}

// MarketIDs returns the markets exactly one of which resolves Yes.
func (e ExactlyOne) MarketIDs() []ids.MarketId { return e.Markets }

// Linear models an arbitrary linear constraint over market outcome
// variables, for relations that don't fit the named shapes above.
type Linear struct {
	Terms []LinearTerm
	Sense Sense
	RHS   float64
}

func (Linear) relationKind() {}

// MarketIDs returns every market referenced by the constraint's terms.
func (l Linear) MarketIDs() []ids.MarketId {
	out := make([]ids.MarketId, len(l.Terms))
	for i, t := range l.Terms {
		out[i] = t.MarketID
	}
	return out
}

// Relation is one inferred logical relationship between markets, with a
// confidence score and an expiry after which it should be re-inferred.
type Relation struct {
	ID         ids.RelationId
	Kind       RelationKind
	Confidence float64
	Reasoning  string
	InferredAt time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the relation's expiry has passed as of now.
func (r Relation) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
