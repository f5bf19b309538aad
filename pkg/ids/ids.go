// Package ids defines type-distinct identifiers for domain entities.
//
// Each identifier is a named string (or uint64) type rather than a raw
// string, so the compiler rejects passing a MarketId where a TokenId is
// expected even though both are strings underneath.
package ids

import (
	"fmt"

	"github.com/google/uuid"
)

// TokenId identifies a tradeable outcome token (one share of one outcome).
type TokenId string

// MarketId identifies a prediction market.
type MarketId string

// OrderId identifies an exchange order, assigned by the exchange.
type OrderId string

// RelationId identifies an inferred logical relation between markets.
type RelationId string

// NewRelationId generates a fresh relation identifier.
func NewRelationId() RelationId {
	return RelationId(uuid.NewString())
}

// ClusterId identifies a cluster of related markets.
type ClusterId string

// NewClusterId generates a fresh cluster identifier.
func NewClusterId() ClusterId {
	return ClusterId(uuid.NewString())
}

// PositionId identifies a tracked position, monotonic per process.
type PositionId uint64

// String renders a PositionId as "pos-<n>".
func (p PositionId) String() string {
	return fmt.Sprintf("pos-%d", uint64(p))
}
