package room

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

// fakeMember records payloads it receives.
type fakeMember struct {
	id   string
	fail bool

	mu       sync.Mutex
	received [][]byte
}

func (f *fakeMember) ID() string { return f.id }

func (f *fakeMember) Send(data []byte) error {
	if f.fail {
		return errors.New("transport closed")
	}
	f.mu.Lock()
	f.received = append(f.received, data)
	f.mu.Unlock()
	return nil
}

func (f *fakeMember) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func TestJoinBroadcastLeave(t *testing.T) {
	reg := NewRegistry(nil)
	a := &fakeMember{id: "a"}
	b := &fakeMember{id: "b"}

	reg.Join("match:m1", a)
	reg.Join("match:m1", b)

	if n := reg.Broadcast("match:m1", []byte("x")); n != 2 {
		t.Errorf("Broadcast delivered %d, want 2", n)
	}

	reg.Leave("match:m1", a)
	if n := reg.Broadcast("match:m1", []byte("y")); n != 1 {
		t.Errorf("Broadcast after leave delivered %d, want 1", n)
	}
	if a.count() != 1 {
		t.Errorf("departed member received %d payloads, want 1", a.count())
	}
}

func TestBroadcastIsolation(t *testing.T) {
	reg := NewRegistry(nil)
	a := &fakeMember{id: "a"}
	b := &fakeMember{id: "b"}

	reg.Join("match:m1", a)
	reg.Join("match:m2", b)

	reg.Broadcast("match:m1", []byte("for m1"))

	if b.count() != 0 {
		t.Errorf("member of match:m2 received %d payloads for match:m1, want 0", b.count())
	}
}

func TestBroadcastFailureIsolated(t *testing.T) {
	reg := NewRegistry(nil)
	bad := &fakeMember{id: "bad", fail: true}
	good := &fakeMember{id: "good"}

	reg.Join("match:m1", bad)
	reg.Join("match:m1", good)

	if n := reg.Broadcast("match:m1", []byte("x")); n != 1 {
		t.Errorf("Broadcast delivered %d, want 1", n)
	}
	if good.count() != 1 {
		t.Errorf("healthy member received %d payloads, want 1", good.count())
	}
}

func TestBroadcastUnknownRoom(t *testing.T) {
	reg := NewRegistry(nil)
	if n := reg.Broadcast("match:nope", []byte("x")); n != 0 {
		t.Errorf("Broadcast to unknown room delivered %d, want 0", n)
	}
}

func TestEmptyRoomGarbageCollected(t *testing.T) {
	reg := NewRegistry(nil)
	a := &fakeMember{id: "a"}

	reg.Join("match:m1", a)
	if rooms, _ := reg.Stats(); rooms != 1 {
		t.Fatalf("rooms = %d, want 1", rooms)
	}

	reg.Leave("match:m1", a)
	if rooms, _ := reg.Stats(); rooms != 0 {
		t.Errorf("rooms after last leave = %d, want 0", rooms)
	}
}

func TestLeaveAll(t *testing.T) {
	reg := NewRegistry(nil)
	a := &fakeMember{id: "a"}

	reg.Join("match:m1", a)
	reg.Join("tournament:t1", a)

	reg.LeaveAll(a)
	// Repeated teardown must be harmless.
	reg.LeaveAll(a)

	if rooms, members := reg.Stats(); rooms != 0 || members != 0 {
		t.Errorf("Stats() = %d rooms %d members, want 0/0", rooms, members)
	}
}

func TestJoinRacingLastLeaveStaysReachable(t *testing.T) {
	reg := NewRegistry(nil)

	// A Join racing the Leave that empties the room must never land in
	// a room object the empty-room collection already detached: the
	// joiner would ack but be invisible to every later Broadcast.
	for i := 0; i < 5000; i++ {
		a := &fakeMember{id: "a"}
		b := &fakeMember{id: "b"}
		reg.Join("match:m1", a)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.Leave("match:m1", a)
		}()
		go func() {
			defer wg.Done()
			reg.Join("match:m1", b)
		}()
		wg.Wait()

		if n := reg.Broadcast("match:m1", []byte("x")); n != 1 {
			t.Fatalf("iteration %d: delivered %d, want 1 (joined member unreachable)", i, n)
		}
		reg.Leave("match:m1", b)
	}
}

func TestConcurrentMembershipAndBroadcast(t *testing.T) {
	reg := NewRegistry(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := &fakeMember{id: fmt.Sprintf("conn-%d", i)}
			reg.Join("match:m1", m)
			reg.Broadcast("match:m1", []byte("tick"))
			reg.Leave("match:m1", m)
		}(i)
	}
	wg.Wait()

	if rooms, members := reg.Stats(); members != 0 {
		t.Errorf("Stats() = %d rooms %d members after churn, want 0 members", rooms, members)
	}
}
