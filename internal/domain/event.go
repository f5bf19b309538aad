package domain

import "github.com/edgelord/edgelord/pkg/ids"

// MarketEvent is a closed sum type over the events a market data stream
// can emit.
type MarketEvent interface {
	marketEvent()
}

// BookSnapshot is a full order-book replacement for one token.
type BookSnapshot struct {
	TokenID ids.TokenId
	Book    Book
}

func (BookSnapshot) marketEvent() {}

// BookDelta reports that one token's book changed through an incremental
// update. Adapters fold the update into their own copy of the book before
// emitting, so Book is always the complete post-update book and consumers
// treat it like a BookSnapshot; internal/exchange's market decoder emits it
// for price_change frames.
type BookDelta struct {
	TokenID ids.TokenId
	Book    Book
}

func (BookDelta) marketEvent() {}

// MarketSettled announces a market's resolution.
type MarketSettled struct {
	MarketID       ids.MarketId
	WinningOutcome ids.TokenId
	PayoutPerShare Money
}

func (MarketSettled) marketEvent() {}

// Connected announces that the underlying stream (re)established a
// connection.
type Connected struct{}

func (Connected) marketEvent() {}

// Disconnected announces that the underlying stream lost its connection.
type Disconnected struct {
	Reason string
}

func (Disconnected) marketEvent() {}
