// Package book maintains a concurrency-safe cache of the latest order book
// snapshot for every subscribed token, and broadcasts a notice of which
// token changed to any number of subscribers.
package book

import (
	"log/slog"
	"sync"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/pkg/ids"
)

// notificationBufferSize is how many pending notices a subscriber channel
// holds before its oldest pending notice is dropped to make room.
const notificationBufferSize = 256

// Cache holds the latest Book for every token the system has seen an
// update for. Reads return deep copies; the cache never hands out a
// pointer into its own state.
type Cache struct {
	mu     sync.RWMutex
	logger *slog.Logger
	books  map[ids.TokenId]domain.Book

	subMu       sync.Mutex
	subscribers []chan ids.TokenId
	dropped     uint64
}

// New creates an empty Cache.
func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		logger: logger,
		books:  make(map[ids.TokenId]domain.Book),
	}
}

// Update installs book as the new snapshot for its token and notifies
// subscribers. Parsing/validation of book is expected to have happened
// before this call; Update only takes the lock to swap the map entry.
func (c *Cache) Update(b domain.Book) {
	c.mu.Lock()
	c.books[b.TokenID] = b
	c.mu.Unlock()

	c.broadcast(b.TokenID)
}

// Get returns a deep copy of the latest book for token, if present.
func (c *Cache) Get(token ids.TokenId) (domain.Book, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.books[token]
	if !ok {
		return domain.Book{}, false
	}
	return b.Clone(), true
}

// GetPair returns deep copies of both tokens' books under a single RLock,
// giving a consistent cross-token view.
func (c *Cache) GetPair(a, b ids.TokenId) (domain.Book, domain.Book, bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ba, okA := c.books[a]
	bb, okB := c.books[b]
	if okA {
		ba = ba.Clone()
	}
	if okB {
		bb = bb.Clone()
	}
	return ba, bb, okA, okB
}

// GetMany returns deep copies of every requested token's book, present or
// not, under a single RLock.
func (c *Cache) GetMany(tokens []ids.TokenId) map[ids.TokenId]domain.Book {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[ids.TokenId]domain.Book, len(tokens))
	for _, t := range tokens {
		if b, ok := c.books[t]; ok {
			out[t] = b.Clone()
		}
	}
	return out
}

// Subscribe registers a new notification channel and returns it. The
// channel receives the TokenId of every book updated after registration;
// it never replays history. Callers must keep draining it — a full
// channel drops its oldest pending notice rather than blocking the writer.
func (c *Cache) Subscribe() <-chan ids.TokenId {
	ch := make(chan ids.TokenId, notificationBufferSize)

	c.subMu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.subMu.Unlock()

	return ch
}

// Dropped returns the number of notices dropped so far because a
// subscriber channel was full.
func (c *Cache) Dropped() uint64 {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	return c.dropped
}

func (c *Cache) broadcast(token ids.TokenId) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for _, ch := range c.subscribers {
		select {
		case ch <- token:
			continue
		default:
		}
		// Channel full: discard the oldest pending notice to make room.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- token:
		default:
		}
		c.dropped++
		bookDropNotices.Inc()
		c.logger.Warn("book cache dropped oldest notice, subscriber channel full", "token", string(token))
	}
}
