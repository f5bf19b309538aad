package domain

import "github.com/edgelord/edgelord/pkg/money"

// Price, Volume, and Money are re-exported here so domain types can be read
// without an extra import in most call sites.
type (
	Price  = money.Price
	Volume = money.Volume
	Money  = money.Money
)

// Zero returns the additive identity for Money/Price/Volume arithmetic.
func Zero() Money {
	return money.Zero
}
