// Package orderbook implements the OrderBookCache: the single-writer,
// multi-reader store of per-token order book state fed by the market
// data stream.
package orderbook

import (
	"sync"
	"time"

	"github.com/polyarb/polyarb/internal/errs"
	"github.com/polyarb/polyarb/pkg/types"
	"go.uber.org/zap"
)

// Cache owns every subscribed token's order book. It is written only by
// the stream handler goroutine that calls Apply; all other callers only
// read snapshots or drain the dirty set, per §5's single-writer model.
type Cache struct {
	mu     sync.RWMutex
	books  map[types.TokenId]*book
	logger *zap.Logger

	dirtyMu sync.Mutex
	dirty   map[types.TokenId]struct{}
}

// New creates an empty Cache.
func New(logger *zap.Logger) *Cache {
	return &Cache{
		books:  make(map[types.TokenId]*book),
		dirty:  make(map[types.TokenId]struct{}),
		logger: logger,
	}
}

// Apply updates the book for msg.TokenID and marks the token dirty. It
// returns a *errs.StaleSequence when a delta's sequence regresses or
// gaps. A regressed delta is dropped and leaves the book as it was; a
// gap marks the book Stale, which Snapshot reports, until a fresh
// StreamSnapshot arrives.
func (c *Cache) Apply(msg *types.StreamMessage) error {
	start := time.Now()
	defer func() {
		UpdateProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	lockStart := time.Now()
	c.mu.Lock()
	LockContentionDuration.Observe(time.Since(lockStart).Seconds())
	defer c.mu.Unlock()

	b, ok := c.books[msg.TokenID]
	if !ok {
		b = newBook(msg.MarketID)
		c.books[msg.TokenID] = b
		BooksTracked.Set(float64(len(c.books)))
	}

	switch msg.Kind {
	case types.StreamSnapshot:
		b.replace(msg.Bids, msg.Asks, msg.Sequence, msg.Timestamp)
		UpdatesTotal.WithLabelValues("snapshot").Inc()
		c.markDirty(msg.TokenID)
		return nil

	case types.StreamDelta:
		if msg.Sequence <= b.sequence {
			StaleSequenceTotal.WithLabelValues(string(msg.TokenID)).Inc()
			return &errs.StaleSequence{TokenID: string(msg.TokenID), Expected: b.sequence + 1, Got: msg.Sequence}
		}
		if msg.Sequence > b.sequence+1 {
			b.stale = true
			StaleSequenceTotal.WithLabelValues(string(msg.TokenID)).Inc()
			return &errs.StaleSequence{TokenID: string(msg.TokenID), Expected: b.sequence + 1, Got: msg.Sequence}
		}
		b.applyDelta(msg.Bids, msg.Asks, msg.Sequence, msg.Timestamp)
		UpdatesTotal.WithLabelValues("delta").Inc()
		if b.crossed() {
			c.logger.Warn("orderbook-crossed", zap.String("token_id", string(msg.TokenID)))
		}
		c.markDirty(msg.TokenID)
		return nil

	case types.StreamHeartbeat:
		return nil

	case types.StreamError:
		b.stale = true
		return &errs.StreamError{TokenID: string(msg.TokenID), Reason: "upstream-error", Err: msg.Err}

	default:
		return &errs.StreamError{TokenID: string(msg.TokenID), Reason: "unknown-message-kind"}
	}
}

// Snapshot returns an immutable view of a token's book. ok is false when
// the token has never been seen; Stale is set on the returned snapshot
// when the book is excluded from strategy evaluation pending resync.
func (c *Cache) Snapshot(tokenID types.TokenId) (types.OrderBookSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.books[tokenID]
	if !ok {
		return types.OrderBookSnapshot{}, false
	}
	return b.snapshot(tokenID), true
}

// AllSnapshots returns a snapshot of every tracked token, keyed by id.
func (c *Cache) AllSnapshots() map[types.TokenId]types.OrderBookSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[types.TokenId]types.OrderBookSnapshot, len(c.books))
	for id, b := range c.books {
		out[id] = b.snapshot(id)
	}
	return out
}

// Evict drops a token's book entirely, used when it leaves the
// subscription set. The next Apply for that token starts a fresh book.
func (c *Cache) Evict(tokenID types.TokenId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.books, tokenID)
	BooksTracked.Set(float64(len(c.books)))

	c.dirtyMu.Lock()
	delete(c.dirty, tokenID)
	DirtySetSize.Set(float64(len(c.dirty)))
	c.dirtyMu.Unlock()
}

func (c *Cache) markDirty(tokenID types.TokenId) {
	c.dirtyMu.Lock()
	c.dirty[tokenID] = struct{}{}
	DirtySetSize.Set(float64(len(c.dirty)))
	c.dirtyMu.Unlock()
}

// DrainDirty returns and clears the set of tokens that changed since the
// last drain. Idempotent: draining an already-empty set returns nil.
func (c *Cache) DrainDirty() []types.TokenId {
	c.dirtyMu.Lock()
	defer c.dirtyMu.Unlock()

	if len(c.dirty) == 0 {
		return nil
	}
	out := make([]types.TokenId, 0, len(c.dirty))
	for id := range c.dirty {
		out = append(out, id)
	}
	c.dirty = make(map[types.TokenId]struct{})
	DirtySetSize.Set(0)
	return out
}
