package directory

import (
	"context"
	"errors"
	"testing"
)

func TestRoleFor(t *testing.T) {
	e := &Entity{
		Kind:         KindMatch,
		ID:           "m1",
		Organizers:   []string{"org-1"},
		Participants: []string{"alice", "bob"},
	}

	tests := []struct {
		subject string
		want    Role
	}{
		{"org-1", RoleOrganizer},
		{"alice", RoleParticipant},
		{"bob", RoleParticipant},
		{"random-viewer", RoleSpectator},
	}

	for _, tt := range tests {
		if got := e.RoleFor(tt.subject); got != tt.want {
			t.Errorf("RoleFor(%q) = %q, want %q", tt.subject, got, tt.want)
		}
	}
}

func TestRoleForOrganizerWins(t *testing.T) {
	// An organizer who also plays is treated as organizer.
	e := &Entity{
		Kind:         KindTournament,
		ID:           "t1",
		Organizers:   []string{"alice"},
		Participants: []string{"alice", "bob"},
	}
	if got := e.RoleFor("alice"); got != RoleOrganizer {
		t.Errorf("RoleFor(alice) = %q, want organizer", got)
	}
}

func TestRooms(t *testing.T) {
	match := &Entity{Kind: KindMatch, ID: "m1", TournamentID: "t1"}
	got := match.Rooms()
	want := []string{"match:m1", "tournament:t1"}
	if len(got) != len(want) {
		t.Fatalf("Rooms() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Rooms()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	tournament := &Entity{Kind: KindTournament, ID: "t1"}
	got = tournament.Rooms()
	if len(got) != 1 || got[0] != "tournament:t1" {
		t.Errorf("Rooms() = %v, want [tournament:t1]", got)
	}
}

func TestSnapshot(t *testing.T) {
	e := &Entity{
		Kind:         KindMatch,
		ID:           "m1",
		TournamentID: "t1",
		Status:       "in_progress",
		Participants: []string{"alice", "bob"},
	}

	snap := e.Snapshot()
	if snap.ID != "m1" || snap.Kind != KindMatch {
		t.Errorf("Snapshot identity = %q/%q", snap.Kind, snap.ID)
	}
	if snap.Status != "in_progress" {
		t.Errorf("Snapshot.Status = %q, want in_progress", snap.Status)
	}
	if snap.Participants != 2 {
		t.Errorf("Snapshot.Participants = %d, want 2", snap.Participants)
	}
}

func TestMemoryResolve(t *testing.T) {
	m := NewMemory()
	m.Put(&Entity{Kind: KindMatch, ID: "m1", TournamentID: "t1"})

	ctx := context.Background()

	e, err := m.Resolve(ctx, KindMatch, "m1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if e.TournamentID != "t1" {
		t.Errorf("TournamentID = %q, want t1", e.TournamentID)
	}

	if _, err := m.Resolve(ctx, KindMatch, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(missing) = %v, want ErrNotFound", err)
	}

	m.Remove(KindMatch, "m1")
	if _, err := m.Resolve(ctx, KindMatch, "m1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve after Remove = %v, want ErrNotFound", err)
	}
}
