package download

import (
	"sort"
	"sync"
	"time"
)

// MaxStoredAttempts bounds the retry memory. When the bound is exceeded
// the oldest quarter of stored attempts is evicted, so bursts do not
// thrash the map one entry at a time.
const MaxStoredAttempts = 50

// Attempt is the minimal state needed to replay a failed request: the
// original target and options, verbatim. Never mutated after storage.
type Attempt struct {
	Target    Target
	Options   *Options
	Timestamp time.Time
}

// AttemptStore is a bounded map of attempts keyed by task ID.
type AttemptStore struct {
	mu       sync.Mutex
	max      int
	attempts map[string]Attempt
	clock    func() time.Time
}

// NewAttemptStore creates a store holding at most max attempts; max <= 0
// selects MaxStoredAttempts.
func NewAttemptStore(max int) *AttemptStore {
	if max <= 0 {
		max = MaxStoredAttempts
	}
	return &AttemptStore{
		max:      max,
		attempts: make(map[string]Attempt),
		clock:    time.Now,
	}
}

// Put records an attempt under taskID, evicting the oldest quarter of
// entries when the store is full.
func (s *AttemptStore) Put(taskID string, target Target, opts *Options) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.attempts) >= s.max {
		s.evictOldestLocked()
	}

	s.attempts[taskID] = Attempt{
		Target:    target,
		Options:   opts,
		Timestamp: s.clock(),
	}
}

// Get returns the stored attempt for taskID, if it has not been evicted.
func (s *AttemptStore) Get(taskID string) (Attempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[taskID]
	return a, ok
}

// Len returns the number of stored attempts.
func (s *AttemptStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts)
}

func (s *AttemptStore) evictOldestLocked() {
	type entry struct {
		id string
		ts time.Time
	}

	entries := make([]entry, 0, len(s.attempts))
	for id, a := range s.attempts {
		entries = append(entries, entry{id, a.Timestamp})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ts.Before(entries[j].ts)
	})

	evict := len(entries) / 4
	if evict < 1 {
		evict = 1
	}
	for _, e := range entries[:evict] {
		delete(s.attempts, e.id)
	}
}
