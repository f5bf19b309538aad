package domain

import "github.com/edgelord/edgelord/pkg/ids"

// PriceLevel is an immutable (price, size) pair at one level of a book.
type PriceLevel struct {
	Price Price
	Size  Volume
}

// Book is a per-token order book mirror. Bids are ordered descending by
// price, asks ascending. A Book is replaced whole on every update — it is
// never partially mutated in place.
type Book struct {
	TokenID ids.TokenId
	Bids    []PriceLevel
	Asks    []PriceLevel
}

// BestBid returns the highest bid, if any.
func (b Book) BestBid() (PriceLevel, bool) {
	if len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest ask, if any.
func (b Book) BestAsk() (PriceLevel, bool) {
	if len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	return b.Asks[0], true
}

// Clone returns a deep copy, safe to hand to a caller outside the cache's lock.
func (b Book) Clone() Book {
	out := Book{TokenID: b.TokenID}
	if b.Bids != nil {
		out.Bids = append([]PriceLevel(nil), b.Bids...)
	}
	if b.Asks != nil {
		out.Asks = append([]PriceLevel(nil), b.Asks...)
	}
	return out
}
