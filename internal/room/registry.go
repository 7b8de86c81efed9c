// Package room implements the fan-out registry mapping room ids to
// subscribed connections.
//
// Rooms are created lazily on first join and removed when the last
// member leaves. Membership is many-to-many: a connection may join
// several rooms and a room holds any number of connections.
package room

import (
	"log/slog"
	"sync"
)

// Member is a connection handle the registry can deliver to. The
// gateway owns the underlying connection; the registry only needs an
// id and a send path.
type Member interface {
	ID() string
	Send(data []byte) error
}

type room struct {
	mu      sync.RWMutex
	members map[string]Member
}

// Registry maps room ids to member connection sets.
type Registry struct {
	logger *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*room
}

// NewRegistry creates an empty room registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		rooms:  make(map[string]*room),
	}
}

// Join adds a member to a room, creating the room if needed. The
// registry lock is held across the insert so a concurrent Leave's
// empty-room check can never collect the room between lookup and
// insert.
func (reg *Registry) Join(roomID string, m Member) {
	reg.mu.Lock()
	r, exists := reg.rooms[roomID]
	if !exists {
		r = &room{members: make(map[string]Member)}
		reg.rooms[roomID] = r
	}
	r.mu.Lock()
	r.members[m.ID()] = m
	count := len(r.members)
	r.mu.Unlock()
	reg.mu.Unlock()

	reg.logger.Debug("joined room", "room", roomID, "conn_id", m.ID(), "members", count)
}

// Leave removes a member from a room. Empty rooms are garbage
// collected. Leaving a room the member never joined is a no-op.
func (reg *Registry) Leave(roomID string, m Member) {
	reg.mu.RLock()
	r, exists := reg.rooms[roomID]
	reg.mu.RUnlock()
	if !exists {
		return
	}

	r.mu.Lock()
	delete(r.members, m.ID())
	count := len(r.members)
	r.mu.Unlock()

	if count == 0 {
		// Re-check under the write lock: a concurrent Join may have
		// repopulated the room, or another Leave may have collected it
		// and a new room object may live under this id now.
		reg.mu.Lock()
		if cur, ok := reg.rooms[roomID]; ok && cur == r {
			r.mu.RLock()
			if len(r.members) == 0 {
				delete(reg.rooms, roomID)
			}
			r.mu.RUnlock()
		}
		reg.mu.Unlock()
	}

	reg.logger.Debug("left room", "room", roomID, "conn_id", m.ID(), "members", count)
}

// LeaveAll removes a member from every room it belongs to. Safe to
// call repeatedly for the same member.
func (reg *Registry) LeaveAll(m Member) {
	reg.mu.RLock()
	ids := make([]string, 0, len(reg.rooms))
	for id := range reg.rooms {
		ids = append(ids, id)
	}
	reg.mu.RUnlock()

	for _, id := range ids {
		reg.Leave(id, m)
	}
}

// Broadcast delivers a payload to every member of a room and returns
// the number of successful deliveries. Membership is snapshotted first
// so concurrent joins and leaves never invalidate the iteration. Send
// failures are logged and do not stop delivery to other members.
func (reg *Registry) Broadcast(roomID string, data []byte) int {
	reg.mu.RLock()
	r, exists := reg.rooms[roomID]
	reg.mu.RUnlock()
	if !exists {
		return 0
	}

	r.mu.RLock()
	members := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, m := range members {
		if err := m.Send(data); err != nil {
			reg.logger.Warn("broadcast delivery failed",
				"room", roomID,
				"conn_id", m.ID(),
				"error", err,
			)
			continue
		}
		delivered++
	}
	return delivered
}

// Stats returns the current room and member counts.
func (reg *Registry) Stats() (rooms, members int) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	rooms = len(reg.rooms)
	for _, r := range reg.rooms {
		r.mu.RLock()
		members += len(r.members)
		r.mu.RUnlock()
	}
	return rooms, members
}
