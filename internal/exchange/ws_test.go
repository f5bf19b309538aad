package exchange

import (
	"encoding/json"
	"testing"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/pkg/ids"
	"github.com/edgelord/edgelord/pkg/types"
)

func TestMarketDecoderBookSnapshot(t *testing.T) {
	t.Parallel()
	decode := NewMarketDecoder(nil)

	evt := types.WSBookEvent{
		EventType: "book",
		AssetID:   "tok-1",
		Buys:      []types.PriceLevel{{Price: "0.40", Size: "100"}},
		Sells:     []types.PriceLevel{{Price: "0.45", Size: "50"}},
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}

	got, err := decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	snap, ok := got.(domain.BookSnapshot)
	if !ok {
		t.Fatalf("expected BookSnapshot, got %T", got)
	}
	if snap.TokenID != ids.TokenId("tok-1") {
		t.Errorf("token id = %v", snap.TokenID)
	}
	if len(snap.Book.Bids) != 1 || len(snap.Book.Asks) != 1 {
		t.Errorf("unexpected book shape: %+v", snap.Book)
	}
}

func TestMarketDecoderPriceChangeWithoutSnapshot(t *testing.T) {
	t.Parallel()
	decode := NewMarketDecoder(nil)

	evt := types.WSPriceChangeEvent{
		EventType: "price_change",
		PriceChanges: []types.WSPriceChange{
			{AssetID: "tok-1", Price: "0.46", Size: "20", Side: "SELL"},
		},
	}
	raw, _ := json.Marshal(evt)

	if _, err := decode(raw); err == nil {
		t.Error("expected error for price_change with no prior snapshot")
	}
}

func TestMarketDecoderPriceChangeAfterSnapshot(t *testing.T) {
	t.Parallel()
	decode := NewMarketDecoder(nil)

	book := types.WSBookEvent{
		EventType: "book",
		AssetID:   "tok-1",
		Buys:      []types.PriceLevel{{Price: "0.40", Size: "100"}},
		Sells:     []types.PriceLevel{{Price: "0.45", Size: "50"}},
	}
	raw, _ := json.Marshal(book)
	if _, err := decode(raw); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	change := types.WSPriceChangeEvent{
		EventType: "price_change",
		PriceChanges: []types.WSPriceChange{
			{AssetID: "tok-1", Price: "0.46", Size: "20", Side: "SELL"},
		},
	}
	raw, _ = json.Marshal(change)
	got, err := decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	delta, ok := got.(domain.BookDelta)
	if !ok {
		t.Fatalf("expected BookDelta, got %T", got)
	}
	if len(delta.Book.Asks) != 2 {
		t.Fatalf("expected 2 ask levels after insert, got %d", len(delta.Book.Asks))
	}
	if best, _ := delta.Book.BestAsk(); best.Price.String() != "0.45" {
		t.Errorf("best ask should remain 0.45, got %s", best.Price.String())
	}
}

func TestMarketDecoderUnrecognizedEventType(t *testing.T) {
	t.Parallel()
	decode := NewMarketDecoder(nil)

	if _, err := decode([]byte(`{"event_type":"unknown"}`)); err == nil {
		t.Error("expected error for unrecognized event type")
	}
}

func TestMarketConnFactoryBuildsDialerPerTokenSet(t *testing.T) {
	t.Parallel()
	factory := MarketConnFactory("wss://example.invalid/market", nil)

	dialer := factory([]ids.TokenId{"tok-1", "tok-2"})
	md, ok := dialer.(*MarketDialer)
	if !ok {
		t.Fatalf("expected *MarketDialer, got %T", dialer)
	}
	if len(md.tokens) != 2 {
		t.Errorf("expected 2 tokens, got %d", len(md.tokens))
	}
}
