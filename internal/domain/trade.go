package domain

import "github.com/edgelord/edgelord/pkg/ids"

// Fill is one leg's successful execution.
type Fill struct {
	TokenID ids.TokenId
	OrderID ids.OrderId
	Price   Price
	Size    Volume
}

// LegFailure is one leg's unsuccessful execution attempt.
type LegFailure struct {
	TokenID ids.TokenId
	Reason  string
}

// TradeResult is a closed sum type over the outcome of executing a
// multi-leg opportunity.
type TradeResult interface {
	tradeResult()
}

// TradeSuccess means every leg filled.
type TradeSuccess struct {
	Fills []Fill
}

func (TradeSuccess) tradeResult() {}

// TradePartial means some legs filled and some did not.
type TradePartial struct {
	Fills    []Fill
	Failures []LegFailure
}

func (TradePartial) tradeResult() {}

// TradeFailed means no leg filled.
type TradeFailed struct {
	Reason string
}

func (TradeFailed) tradeResult() {}
