// Package money provides fixed-point decimal types for prices, volumes,
// and monetary values, avoiding the floating-point rounding errors that
// would otherwise accumulate across arbitrage-edge and exposure math.
package money

import "github.com/shopspring/decimal"

// Price is a per-share price, e.g. 0.45 USDC.
type Price = decimal.Decimal

// Volume is a share quantity, e.g. 100 shares.
type Volume = decimal.Decimal

// Money is a monetary amount, e.g. total cost or exposure in USDC.
type Money = decimal.Decimal

// Zero is the additive identity, convenient for accumulator initialization.
var Zero = decimal.Zero

// FromFloat converts a float64 (as produced by the LMSR solver) back to a
// decimal at the float/decimal boundary. Callers must not use this inside
// the solver itself — only when crossing back into the domain model.
func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
