// Package broadcast implements the batching/coalescing coordinator.
//
// External collaborators publish domain events here; the coordinator
// decides whether an event fans out immediately or coalesces with
// later ones. High-frequency events (score changes) are held in a
// per-entity pending batch under a latest-wins policy and flushed
// after a debounce window; terminal events (completions, disputes)
// flush any pending state first and then broadcast unconditionally.
//
// The pending-batch map and the sequence counter are the only state
// shared across producers. All mutation of an entity's batch happens
// under that entity's lock; no lock spans two entities.
package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bracketworks/livecast/internal/directory"
	"github.com/bracketworks/livecast/internal/protocol"
)

// Terminal reports whether an event kind represents a final state
// transition, exempt from batching.
func Terminal(event string) bool {
	switch event {
	case protocol.TypeMatchCompleted, protocol.TypeDisputeCreated, protocol.TypeMatchStarted:
		return true
	}
	return false
}

// Fanout delivers a payload to every member of a room. Satisfied by
// *room.Registry.
type Fanout interface {
	Broadcast(roomID string, data []byte) int
}

// RoomResolver maps an entity to the rooms carrying its events.
type RoomResolver interface {
	RoomsFor(ctx context.Context, kind directory.Kind, id string) []string
}

// RoomResolverFunc adapts a function to the RoomResolver interface.
type RoomResolverFunc func(ctx context.Context, kind directory.Kind, id string) []string

// RoomsFor implements RoomResolver.
func (f RoomResolverFunc) RoomsFor(ctx context.Context, kind directory.Kind, id string) []string {
	return f(ctx, kind, id)
}

// Config configures the coordinator.
type Config struct {
	// DebounceWindow is the delay between a coalescible event and its
	// flush, during which later events overwrite it.
	DebounceWindow time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{DebounceWindow: 100 * time.Millisecond}
}

// pendingBatch holds the coalescing state for one entity. Only the
// most recent event survives; the timer handle is replaced, not
// reused, so a cancelled flush can never fire with stale data.
type pendingBatch struct {
	event   string
	payload []byte
	timer   *time.Timer
}

// Coordinator applies the debounce/coalesce policy and hands finalized
// payloads to the room registry.
type Coordinator struct {
	cfg     Config
	rooms   Fanout
	resolve RoomResolver
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingBatch
	locks   map[string]*entityLock

	seq atomic.Int64

	flushed   atomic.Int64
	coalesced atomic.Int64
}

// Stats reports coordinator counters.
type Stats struct {
	Pending      int
	LastSequence int64
	Flushed      int64
	Coalesced    int64
}

// NewCoordinator creates a coordinator delivering through rooms.
func NewCoordinator(cfg Config, rooms Fanout, resolve RoomResolver, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = DefaultConfig().DebounceWindow
	}
	return &Coordinator{
		cfg:     cfg,
		rooms:   rooms,
		resolve: resolve,
		logger:  logger,
		pending: make(map[string]*pendingBatch),
		locks:   make(map[string]*entityLock),
	}
}

// Publish is the single entry point for event producers. It never
// blocks on the debounce window and never returns delivery failures.
func (c *Coordinator) Publish(ctx context.Context, kind directory.Kind, id, event string, payload []byte) {
	if Terminal(event) {
		// Flush pending state first so the terminal event is never
		// observed before the latest intermediate state.
		c.Flush(ctx, kind, id)

		data, err := protocol.Encode(event, payload, 0)
		if err != nil {
			c.logger.Error("encode terminal event", "event", event, "error", err)
			return
		}
		c.deliver(ctx, kind, id, event, data)
		return
	}

	key := directory.RoomID(kind, id)

	c.mu.Lock()
	if b, ok := c.pending[key]; ok {
		// Latest wins: cancel the scheduled flush by handle and
		// overwrite, discarding the intermediate payload.
		b.timer.Stop()
		b.event = event
		b.payload = payload
		b.timer = c.scheduleFlush(kind, id)
		c.coalesced.Add(1)
	} else {
		c.pending[key] = &pendingBatch{
			event:   event,
			payload: payload,
			timer:   c.scheduleFlush(kind, id),
		}
	}
	c.mu.Unlock()
}

func (c *Coordinator) scheduleFlush(kind directory.Kind, id string) *time.Timer {
	return time.AfterFunc(c.cfg.DebounceWindow, func() {
		c.Flush(context.Background(), kind, id)
	})
}

// Flush emits the entity's pending batch, if any. Concurrent flush
// attempts for one entity serialize on the entity's lock; flushing an
// entity with nothing pending is a no-op, which makes flush/cancel
// races harmless.
func (c *Coordinator) Flush(ctx context.Context, kind directory.Kind, id string) {
	key := directory.RoomID(kind, id)

	lk := c.lockFor(key)
	lk.Lock()
	defer c.unlockFor(key, lk)

	c.mu.Lock()
	b, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	b.timer.Stop()

	seq := c.seq.Add(1)
	data, err := protocol.Encode(b.event, b.payload, seq)
	if err != nil {
		c.logger.Error("encode batched event", "event", b.event, "error", err)
		return
	}

	c.flushed.Add(1)
	c.deliver(ctx, kind, id, b.event, data)
}

// deliver fans a finalized payload out to every room associated with
// the entity. Per-room failures are already isolated by the registry;
// nothing here propagates back to the producer.
func (c *Coordinator) deliver(ctx context.Context, kind directory.Kind, id, event string, data []byte) {
	for _, roomID := range c.resolve.RoomsFor(ctx, kind, id) {
		n := c.rooms.Broadcast(roomID, data)
		c.logger.Debug("event delivered",
			"event", event,
			"room", roomID,
			"receivers", n,
		)
	}
}

// entityLock is a flush lock with a reference count so the lock map
// does not grow one entry per entity ever seen.
type entityLock struct {
	sync.Mutex
	refs int
}

// lockFor returns the entity's flush lock, creating it on first use.
// Every lockFor is paired with an unlockFor, which evicts the map
// entry once no flusher references it.
func (c *Coordinator) lockFor(key string) *entityLock {
	c.mu.Lock()
	defer c.mu.Unlock()

	lk, ok := c.locks[key]
	if !ok {
		lk = &entityLock{}
		c.locks[key] = lk
	}
	lk.refs++
	return lk
}

func (c *Coordinator) unlockFor(key string, lk *entityLock) {
	lk.Unlock()

	c.mu.Lock()
	lk.refs--
	if lk.refs == 0 {
		delete(c.locks, key)
	}
	c.mu.Unlock()
}

// Stop flushes all pending batches. Producers publishing after Stop
// still work; Stop only drains what is currently held.
func (c *Coordinator) Stop(ctx context.Context) {
	c.mu.Lock()
	keys := make([]string, 0, len(c.pending))
	for key := range c.pending {
		keys = append(keys, key)
	}
	c.mu.Unlock()

	for _, key := range keys {
		kind, id, ok := splitKey(key)
		if !ok {
			continue
		}
		c.Flush(ctx, kind, id)
	}

	c.logger.Info("coordinator drained", "flushed", len(keys))
}

// Stats returns current coordinator counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	pending := len(c.pending)
	c.mu.Unlock()

	return Stats{
		Pending:      pending,
		LastSequence: c.seq.Load(),
		Flushed:      c.flushed.Load(),
		Coalesced:    c.coalesced.Load(),
	}
}

func splitKey(key string) (directory.Kind, string, bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return directory.Kind(key[:i]), key[i+1:], true
		}
	}
	return "", "", false
}
