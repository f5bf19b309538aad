package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/edgelord/edgelord/pkg/ids"
)

// Constraint is a linear constraint on a variable vector whose indices are
// assigned by the Cluster that owns it (index i corresponds to
// Cluster.Markets[i]).
type Constraint struct {
	Coefficients []float64
	Sense        Sense
	RHS          float64
}

// Cluster is a set of markets linked by inferred logical relations, with
// linear constraints precompiled against the markets' positions in the
// sorted Markets slice.
type Cluster struct {
	ID          ids.ClusterId
	Markets     []ids.MarketId // sorted by id
	Relations   []Relation
	Constraints []Constraint
	UpdatedAt   time.Time
}

// Validate checks the invariant that every market referenced by a
// contained relation is present in Markets, and that every constraint's
// coefficient vector has exactly len(Markets) entries.
func (c Cluster) Validate() error {
	index := make(map[ids.MarketId]int, len(c.Markets))
	for i, m := range c.Markets {
		index[m] = i
	}
	for _, rel := range c.Relations {
		for _, m := range rel.Kind.MarketIDs() {
			if _, ok := index[m]; !ok {
				return fmt.Errorf("cluster %s: relation references market %s not in cluster", c.ID, m)
			}
		}
	}
	for i, con := range c.Constraints {
		if len(con.Coefficients) != len(c.Markets) {
			return fmt.Errorf("cluster %s: constraint %d has %d coefficients, want %d", c.ID, i, len(con.Coefficients), len(c.Markets))
		}
	}
	return nil
}

// SortMarkets reorders Markets by id so cluster variable indices are
// stable across rebuilds.
func (c *Cluster) SortMarkets() {
	sort.Slice(c.Markets, func(i, j int) bool { return c.Markets[i] < c.Markets[j] })
}
