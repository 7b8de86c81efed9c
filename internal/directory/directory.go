// Package directory resolves tournaments and matches for connection
// admission.
//
// The directory answers three questions about an entity: does it exist,
// which rooms carry its events, and what role does a given identity
// hold in it. Domain state lives in the platform database; livecast
// only reads it.
package directory

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the requested entity does not exist.
var ErrNotFound = errors.New("entity not found")

// Kind identifies an entity type.
type Kind string

const (
	KindTournament Kind = "tournament"
	KindMatch      Kind = "match"
)

// Role is a connection's relationship to an entity.
type Role string

const (
	RoleOrganizer   Role = "organizer"
	RoleParticipant Role = "participant"
	RoleSpectator   Role = "spectator"
)

// Entity is a resolved tournament or match.
type Entity struct {
	Kind         Kind
	ID           string
	TournamentID string // parent tournament for matches, empty otherwise
	Status       string
	Organizers   []string
	Participants []string
}

// Directory resolves entities by kind and id. Invalidate discards any
// cached state for an entity so the next resolve rereads the source.
type Directory interface {
	Resolve(ctx context.Context, kind Kind, id string) (*Entity, error)
	Invalidate(kind Kind, id string)
}

// RoleFor determines the role an identity holds in this entity.
// Identities in neither set are spectators.
func (e *Entity) RoleFor(subject string) Role {
	for _, org := range e.Organizers {
		if org == subject {
			return RoleOrganizer
		}
	}
	for _, p := range e.Participants {
		if p == subject {
			return RoleParticipant
		}
	}
	return RoleSpectator
}

// Rooms returns the fan-out rooms carrying this entity's events. A
// match belongs to its own room and its parent tournament's room.
func (e *Entity) Rooms() []string {
	switch e.Kind {
	case KindMatch:
		rooms := []string{RoomID(KindMatch, e.ID)}
		if e.TournamentID != "" {
			rooms = append(rooms, RoomID(KindTournament, e.TournamentID))
		}
		return rooms
	default:
		return []string{RoomID(KindTournament, e.ID)}
	}
}

// RoomID builds the canonical room identifier for an entity.
func RoomID(kind Kind, id string) string {
	return string(kind) + ":" + id
}

// Snapshot is the entity summary sent to a client on connect.
type Snapshot struct {
	Kind         Kind   `json:"kind"`
	ID           string `json:"id"`
	TournamentID string `json:"tournament_id,omitempty"`
	Status       string `json:"status"`
	Participants int    `json:"participants"`
}

// Snapshot returns the client-facing summary of this entity.
func (e *Entity) Snapshot() Snapshot {
	return Snapshot{
		Kind:         e.Kind,
		ID:           e.ID,
		TournamentID: e.TournamentID,
		Status:       e.Status,
		Participants: len(e.Participants),
	}
}
