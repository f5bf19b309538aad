// ws.go adapts Polymarket's public market-data WebSocket channel to the
// internal/pool.ConnFactory and internal/pool.Decoder contracts: a
// MarketDialer opens one underlying gorilla/websocket connection carrying
// a fixed slice of token IDs, and MarketDecoder turns each raw frame into
// a domain.MarketEvent the pool merges across every connection.
//
// The market channel emits two message shapes: "book" (a full snapshot
// for one asset) and "price_change" (one or more level deltas). The
// decoder keeps a small per-token book mirror so price_change frames can
// be folded into a full replacement before being handed to the pool —
// domain.MarketEvent has no partial-update variant, by design (see
// internal/domain/event.go).
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/internal/reconnect"
	"github.com/edgelord/edgelord/pkg/ids"
	"github.com/edgelord/edgelord/pkg/types"
)

const (
	wsPingInterval = 50 * time.Second // how often we send PING to keep alive
	wsReadTimeout  = 90 * time.Second // ~2 missed pings triggers reconnect
	wsWriteTimeout = 10 * time.Second // deadline for outgoing messages
)

// MarketDialer is a reconnect.Dialer that opens the Polymarket market
// WebSocket channel subscribed to a fixed set of token IDs.
type MarketDialer struct {
	url    string
	tokens []ids.TokenId
	logger *slog.Logger
}

// NewMarketDialer builds a MarketDialer for the given tokens, rooted at
// url (config.APIConfig.WSMarketURL).
func NewMarketDialer(url string, tokens []ids.TokenId, logger *slog.Logger) *MarketDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketDialer{url: url, tokens: tokens, logger: logger}
}

// MarketConnFactory adapts NewMarketDialer to the pool.ConnFactory shape
// so a Pool can dial a fresh connection per chunk of tokens it assigns.
func MarketConnFactory(url string, logger *slog.Logger) func(tokens []ids.TokenId) reconnect.Dialer {
	return func(tokens []ids.TokenId) reconnect.Dialer {
		return NewMarketDialer(url, tokens, logger)
	}
}

// Dial opens the WebSocket connection and sends the initial subscription
// message for every token this dialer was constructed with.
func (d *MarketDialer) Dial(ctx context.Context) (reconnect.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial market ws: %w", err)
	}

	assetIDs := make([]string, len(d.tokens))
	for i, tok := range d.tokens {
		assetIDs[i] = string(tok)
	}
	sub := types.WSSubscribeMsg{Type: "market", AssetIDs: assetIDs}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send market subscription: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	wc := &wsConn{conn: conn, logger: d.logger}
	wc.startPing(ctx)
	return wc, nil
}

// wsConn implements reconnect.Conn over a gorilla/websocket connection,
// extending the read deadline on every successful read and sending
// periodic PING text frames to keep the connection alive.
type wsConn struct {
	conn   *websocket.Conn
	logger *slog.Logger

	closeOnce sync.Once
	pingStop  chan struct{}
}

func (c *wsConn) startPing(ctx context.Context) {
	c.pingStop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.pingStop:
				return
			case <-ticker.C:
				c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := c.conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
					c.logger.Debug("market ws ping failed", "error", err)
					return
				}
			}
		}
	}()
}

// Read blocks for the next frame, extending the read deadline each time a
// message arrives.
func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	c.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	return msg, nil
}

// Close stops the ping goroutine and closes the underlying connection.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		if c.pingStop != nil {
			close(c.pingStop)
		}
	})
	return c.conn.Close()
}

// bookMirror tracks the last full book seen per token, so price_change
// frames (which only carry the levels that moved) can be folded into a
// full replacement.
type bookMirror struct {
	mu    sync.Mutex
	books map[ids.TokenId]domain.Book
}

func newBookMirror() *bookMirror {
	return &bookMirror{books: make(map[ids.TokenId]domain.Book)}
}

func (m *bookMirror) snapshot(tok ids.TokenId, b domain.Book) domain.Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[tok] = b
	return b
}

func (m *bookMirror) applyChanges(tok ids.TokenId, changes []types.WSPriceChange) (domain.Book, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	book, ok := m.books[tok]
	if !ok {
		return domain.Book{}, false
	}
	for _, c := range changes {
		price, err := decimal.NewFromString(c.Price)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(c.Size)
		if err != nil {
			continue
		}
		if c.Side == string(types.BUY) {
			book.Bids = applyLevel(book.Bids, price, size, false)
		} else {
			book.Asks = applyLevel(book.Asks, price, size, true)
		}
	}
	m.books[tok] = book
	return book, true
}

// applyLevel replaces or removes (size == 0) the level at price, keeping
// the slice sorted (descending for bids, ascending for asks).
func applyLevel(levels []domain.PriceLevel, price, size decimal.Decimal, ascending bool) []domain.PriceLevel {
	idx := -1
	for i, lvl := range levels {
		if lvl.Price.Equal(price) {
			idx = i
			break
		}
	}

	if size.IsZero() {
		if idx >= 0 {
			levels = append(levels[:idx], levels[idx+1:]...)
		}
		return levels
	}

	level := domain.PriceLevel{Price: price, Size: size}
	if idx >= 0 {
		levels[idx] = level
		return levels
	}

	insertAt := len(levels)
	for i, lvl := range levels {
		if ascending && price.LessThan(lvl.Price) {
			insertAt = i
			break
		}
		if !ascending && price.GreaterThan(lvl.Price) {
			insertAt = i
			break
		}
	}
	levels = append(levels, domain.PriceLevel{})
	copy(levels[insertAt+1:], levels[insertAt:])
	levels[insertAt] = level
	return levels
}

// convertLevels parses raw levels and sorts them into the order
// domain.Book requires (descending for bids, ascending for asks); the
// exchange does not guarantee frame-level ordering.
func convertLevels(raw []types.PriceLevel, ascending bool) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		price, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(lvl.Size)
		if err != nil {
			continue
		}
		out = append(out, domain.PriceLevel{Price: price, Size: size})
	}
	sort.Slice(out, func(i, j int) bool {
		if ascending {
			return out[i].Price.LessThan(out[j].Price)
		}
		return out[i].Price.GreaterThan(out[j].Price)
	})
	return out
}

// wsEnvelope extracts just the discriminator field shared by every market
// WS message.
type wsEnvelope struct {
	EventType string `json:"event_type"`
}

// NewMarketDecoder returns a pool.Decoder closed over a fresh bookMirror.
// Every Pool has its own decoder instance so book state from one pool
// (e.g. market vs. a hypothetical secondary feed) never bleeds into
// another's.
func NewMarketDecoder(logger *slog.Logger) func(raw []byte) (domain.MarketEvent, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mirror := newBookMirror()

	return func(raw []byte) (domain.MarketEvent, error) {
		var env wsEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("decode market event envelope: %w", err)
		}

		switch env.EventType {
		case "book":
			var evt types.WSBookEvent
			if err := json.Unmarshal(raw, &evt); err != nil {
				return nil, fmt.Errorf("decode book event: %w", err)
			}
			tok := ids.TokenId(evt.AssetID)
			book := domain.Book{
				TokenID: tok,
				Bids:    convertLevels(evt.Buys, false),
				Asks:    convertLevels(evt.Sells, true),
			}
			mirror.snapshot(tok, book)
			return domain.BookSnapshot{TokenID: tok, Book: book}, nil

		case "price_change":
			var evt types.WSPriceChangeEvent
			if err := json.Unmarshal(raw, &evt); err != nil {
				return nil, fmt.Errorf("decode price_change event: %w", err)
			}
			if len(evt.PriceChanges) == 0 {
				return nil, fmt.Errorf("price_change event carries no levels")
			}
			tok := ids.TokenId(evt.PriceChanges[0].AssetID)
			book, ok := mirror.applyChanges(tok, evt.PriceChanges)
			if !ok {
				return nil, fmt.Errorf("price_change for %s before any book snapshot", tok)
			}
			return domain.BookDelta{TokenID: tok, Book: book}, nil

		default:
			return nil, fmt.Errorf("unrecognized market event type %q", env.EventType)
		}
	}
}
