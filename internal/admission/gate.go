package admission

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Code identifies why the gate denied a request.
type Code string

const (
	CodeConnectionLimit Code = "connection_limit_exceeded"
	CodeRateLimit       Code = "rate_limit_exceeded"
	CodePayloadTooLarge Code = "payload_too_large"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool
	Code    Code
}

func allow() Decision      { return Decision{Allowed: true} }
func deny(c Code) Decision { return Decision{Code: c} }

// Limits configures the gate's policies.
type Limits struct {
	MaxConnections    int           // concurrent connections per identity
	MessagesPerWindow int           // inbound messages per rate window
	RateWindow        time.Duration
	MaxPayloadBytes   int
	IdleEviction      time.Duration // per-identity state eviction
}

// CounterStore is the shared counter backend. Implementations must be
// safe for concurrent use.
type CounterStore interface {
	// AddConnection increments the identity's connection count and
	// returns the new count.
	AddConnection(ctx context.Context, identity string) (int64, error)

	// RemoveConnection decrements the identity's connection count.
	RemoveConnection(ctx context.Context, identity string) error

	// CountMessage increments the identity's message count for the
	// current rate window and returns the new count.
	CountMessage(ctx context.Context, identity string, window time.Duration) (int64, error)
}

// Gate evaluates admission policy per identity.
//
// The local store always tracks activity so a Redis outage never loses
// the in-flight picture; the shared store is authoritative whenever it
// answers.
type Gate struct {
	limits Limits
	shared CounterStore // nil when running without Redis
	local  *localStore
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGate creates an admission gate. shared may be nil, in which case
// only the in-process store is used.
func NewGate(limits Limits, shared CounterStore, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		limits: limits,
		shared: shared,
		local:  newLocalStore(),
		logger: logger,
	}
}

// Start launches the idle-state janitor.
func (g *Gate) Start(ctx context.Context) error {
	g.ctx, g.cancel = context.WithCancel(ctx)

	g.wg.Add(1)
	go g.evictLoop()

	return nil
}

// Stop shuts down the janitor.
func (g *Gate) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()
}

// Connect checks whether the identity may open another connection. On
// denial no slot is held; otherwise the caller must Release when the
// connection closes.
func (g *Gate) Connect(ctx context.Context, identity string) Decision {
	localCount := g.local.addConnection(identity)
	count := localCount

	if g.shared != nil {
		shared, err := g.shared.AddConnection(ctx, identity)
		if err != nil {
			g.logger.Warn("shared counter store unavailable, using local counts",
				"check", "connect",
				"error", err,
			)
		} else {
			count = shared
		}
	}

	if count > int64(g.limits.MaxConnections) {
		g.release(ctx, identity)
		return deny(CodeConnectionLimit)
	}
	return allow()
}

// Release returns the identity's connection slot.
func (g *Gate) Release(ctx context.Context, identity string) {
	g.release(ctx, identity)
}

func (g *Gate) release(ctx context.Context, identity string) {
	g.local.removeConnection(identity)
	if g.shared != nil {
		if err := g.shared.RemoveConnection(ctx, identity); err != nil {
			g.logger.Warn("shared counter store unavailable on release", "error", err)
		}
	}
}

// Message checks whether the identity is within its message rate.
func (g *Gate) Message(ctx context.Context, identity string) Decision {
	localCount := g.local.countMessage(identity, g.limits.RateWindow)
	count := localCount

	if g.shared != nil {
		shared, err := g.shared.CountMessage(ctx, identity, g.limits.RateWindow)
		if err != nil {
			g.logger.Warn("shared counter store unavailable, using local counts",
				"check", "message",
				"error", err,
			)
		} else {
			count = shared
		}
	}

	if count > int64(g.limits.MessagesPerWindow) {
		return deny(CodeRateLimit)
	}
	return allow()
}

// Payload checks an inbound payload's size. Purely local: the size
// limit needs no shared state.
func (g *Gate) Payload(size int) Decision {
	if size > g.limits.MaxPayloadBytes {
		return deny(CodePayloadTooLarge)
	}
	return allow()
}

func (g *Gate) evictLoop() {
	defer g.wg.Done()

	interval := g.limits.IdleEviction
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.ctx.Done():
			return
		case <-ticker.C:
			evicted := g.local.evictIdle(interval)
			if evicted > 0 {
				g.logger.Debug("evicted idle rate-limit state", "count", evicted)
			}
		}
	}
}
