package admission

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 64

// localStore is the in-process counter fallback. Sharded to reduce
// mutex contention under high connection churn.
type localStore struct {
	shards [shardCount]localShard
}

type localShard struct {
	mu       sync.Mutex
	identity map[string]*identityState
}

// identityState holds one identity's counters.
type identityState struct {
	conns       int64
	msgCount    int64
	windowStart time.Time
	lastSeen    time.Time
}

func newLocalStore() *localStore {
	s := &localStore{}
	for i := range s.shards {
		s.shards[i].identity = make(map[string]*identityState)
	}
	return s
}

func (s *localStore) shard(identity string) *localShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identity))
	return &s.shards[h.Sum32()%shardCount]
}

func (s *localStore) state(sh *localShard, identity string) *identityState {
	st, ok := sh.identity[identity]
	if !ok {
		st = &identityState{}
		sh.identity[identity] = st
	}
	st.lastSeen = time.Now()
	return st
}

func (s *localStore) addConnection(identity string) int64 {
	sh := s.shard(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st := s.state(sh, identity)
	st.conns++
	return st.conns
}

func (s *localStore) removeConnection(identity string) {
	sh := s.shard(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.identity[identity]
	if !ok {
		return
	}
	if st.conns > 0 {
		st.conns--
	}
}

// countMessage counts a message in the identity's current fixed
// window, resetting the window when it has elapsed.
func (s *localStore) countMessage(identity string, window time.Duration) int64 {
	sh := s.shard(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st := s.state(sh, identity)
	now := time.Now()
	if st.windowStart.IsZero() || now.Sub(st.windowStart) >= window {
		st.windowStart = now
		st.msgCount = 0
	}
	st.msgCount++
	return st.msgCount
}

// evictIdle drops identities with no open connections and no activity
// within maxIdle. Returns the number of evicted entries.
func (s *localStore) evictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	evicted := 0

	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for id, st := range sh.identity {
			if st.conns == 0 && st.lastSeen.Before(cutoff) {
				delete(sh.identity, id)
				evicted++
			}
		}
		sh.mu.Unlock()
	}
	return evicted
}
