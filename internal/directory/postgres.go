package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres resolves entities from the platform database with a
// read-through TTL cache so bursts of connects for the same match do
// not fan into repeated lookups.
type Postgres struct {
	pool   *pgxpool.Pool
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	entity  *Entity
	expires time.Time
}

// NewPostgres creates a database-backed directory.
func NewPostgres(pool *pgxpool.Pool, cacheTTL time.Duration, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{
		pool:   pool,
		ttl:    cacheTTL,
		logger: logger,
		cache:  make(map[string]cacheEntry),
	}
}

// Resolve looks up an entity, serving from cache when fresh.
func (d *Postgres) Resolve(ctx context.Context, kind Kind, id string) (*Entity, error) {
	key := RoomID(kind, id)

	d.mu.RLock()
	entry, ok := d.cache[key]
	d.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.entity, nil
	}

	var (
		entity *Entity
		err    error
	)
	switch kind {
	case KindTournament:
		entity, err = d.resolveTournament(ctx, id)
	case KindMatch:
		entity, err = d.resolveMatch(ctx, id)
	default:
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.cache[key] = cacheEntry{entity: entity, expires: time.Now().Add(d.ttl)}
	d.mu.Unlock()

	return entity, nil
}

// Invalidate implements Directory, dropping the cached entity so the
// next resolve rereads the database.
func (d *Postgres) Invalidate(kind Kind, id string) {
	d.mu.Lock()
	delete(d.cache, RoomID(kind, id))
	d.mu.Unlock()
}

func (d *Postgres) resolveTournament(ctx context.Context, id string) (*Entity, error) {
	e := &Entity{Kind: KindTournament, ID: id}

	var organizer string
	err := d.pool.QueryRow(ctx,
		`SELECT status, organizer_id FROM tournaments WHERE id = $1`,
		id,
	).Scan(&e.Status, &organizer)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query tournament: %w", err)
	}
	e.Organizers = []string{organizer}

	rows, err := d.pool.Query(ctx,
		`SELECT user_id FROM tournament_participants WHERE tournament_id = $1`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("query tournament participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		e.Participants = append(e.Participants, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}

	return e, nil
}

func (d *Postgres) resolveMatch(ctx context.Context, id string) (*Entity, error) {
	e := &Entity{Kind: KindMatch, ID: id}

	var organizer string
	var p1, p2 *string
	err := d.pool.QueryRow(ctx,
		`SELECT m.tournament_id, m.status, m.participant1_id, m.participant2_id, t.organizer_id
		 FROM matches m
		 JOIN tournaments t ON t.id = m.tournament_id
		 WHERE m.id = $1`,
		id,
	).Scan(&e.TournamentID, &e.Status, &p1, &p2, &organizer)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query match: %w", err)
	}

	e.Organizers = []string{organizer}
	if p1 != nil {
		e.Participants = append(e.Participants, *p1)
	}
	if p2 != nil {
		e.Participants = append(e.Participants, *p2)
	}

	return e, nil
}
