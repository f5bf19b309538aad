package domain

import (
	"time"

	"github.com/edgelord/edgelord/pkg/ids"
)

// PositionStatus is a closed sum type over the lifecycle states of a
// Position. Go has no native sum types, so it is modeled as a small
// interface implemented only by the types in this file.
type PositionStatus interface {
	positionStatus()
}

// StatusOpen is a position with every leg filled and not yet settled.
type StatusOpen struct{}

func (StatusOpen) positionStatus() {}

// StatusPartialFill is a position where some legs filled and some did not,
// and the filled legs could not be cleanly unwound.
type StatusPartialFill struct {
	Filled  []ids.TokenId
	Missing []ids.TokenId
}

func (StatusPartialFill) positionStatus() {}

// StatusClosed is a settled position with a realized profit/loss.
type StatusClosed struct {
	PnL Money
}

func (StatusClosed) positionStatus() {}

// Position tracks one executed (or partially executed) multi-leg trade.
type Position struct {
	ID               ids.PositionId
	MarketID         ids.MarketId
	Legs             []OpportunityLeg
	EntryCost        Money
	GuaranteedPayout Money
	OpenedAt         time.Time
	Status           PositionStatus
	TradeID          *string
}
