package state

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultTTL is the maximum age after which a flow record is treated as abandoned.
	DefaultTTL = 30 * time.Minute
	// DefaultSweepInterval is how often the background sweep evicts stale records.
	DefaultSweepInterval = 5 * time.Minute
)

// ErrLocked indicates that a concurrent operation already holds the user's lock.
var ErrLocked = errors.New("operation already in progress")

// Record is the per-user progress marker for a conversational flow:
// the current step, the payload accumulated so far and the time of last mutation.
type Record[T any] struct {
	Step      string
	Payload   T
	UpdatedAt time.Time
}

// Stats is a point-in-time snapshot of a store, used by health reporting.
type Stats struct {
	Records     int
	LockedUsers int
	OldestAge   time.Duration
}

type options struct {
	ttl     time.Duration
	sweep   time.Duration
	now     func() time.Time
	onEvict func(count int)
}

// Option customizes a Store.
type Option func(*options)

// WithTTL overrides the record time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithSweepInterval overrides the background sweep period.
func WithSweepInterval(interval time.Duration) Option {
	return func(o *options) { o.sweep = interval }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithEvictionObserver registers a callback invoked with the number of
// records evicted by each background sweep that removed at least one.
func WithEvictionObserver(fn func(count int)) Option {
	return func(o *options) { o.onEvict = fn }
}

// Store holds at most one flow Record per user, with TTL-aware reads,
// an advisory per-user lock and a background expiry sweep. All operations
// are in-memory and synchronous; logical failures are reported via return
// values, never errors.
type Store[T any] struct {
	mu      sync.Mutex
	records map[int64]Record[T]
	locks   map[int64]struct{}

	ttl     time.Duration
	sweep   time.Duration
	now     func() time.Time
	onEvict func(count int)
	log     *slog.Logger
}

// New constructs a Store. The sweep loop does not start until Run is called.
func New[T any](log *slog.Logger, opts ...Option) *Store[T] {
	if log == nil {
		log = slog.Default()
	}

	o := options{
		ttl:   DefaultTTL,
		sweep: DefaultSweepInterval,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Store[T]{
		records: make(map[int64]Record[T]),
		locks:   make(map[int64]struct{}),
		ttl:     o.ttl,
		sweep:   o.sweep,
		now:     o.now,
		onEvict: o.onEvict,
		log:     log,
	}
}

// Set unconditionally replaces any existing record for the user with a fresh
// one stamped with the current time.
func (s *Store[T]) Set(userID int64, step string, payload T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[userID] = Record[T]{
		Step:      step,
		Payload:   payload,
		UpdatedAt: s.now(),
	}
}

// Get returns a copy of the user's record if it exists and has not expired.
// An expired record is deleted as a side effect and reported absent.
func (s *Store[T]) Get(userID int64) (Record[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return Record[T]{}, false
	}
	if s.now().Sub(rec.UpdatedAt) > s.ttl {
		delete(s.records, userID)
		return Record[T]{}, false
	}

	return rec, true
}

// Step returns the current step tag for the user, or "" when no live record exists.
func (s *Store[T]) Step(userID int64) string {
	rec, ok := s.Get(userID)
	if !ok {
		return ""
	}
	return rec.Step
}

// Update applies fn to the payload of a live record and refreshes its
// timestamp. It reports false when no live record existed to update.
func (s *Store[T]) Update(userID int64, fn func(payload *T)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return false
	}
	if s.now().Sub(rec.UpdatedAt) > s.ttl {
		delete(s.records, userID)
		return false
	}

	fn(&rec.Payload)
	rec.UpdatedAt = s.now()
	s.records[userID] = rec

	return true
}

// Advance moves a live record to the given step, optionally mutating the
// payload first, and refreshes the timestamp. Reports false when absent.
func (s *Store[T]) Advance(userID int64, step string, fn func(payload *T)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return false
	}
	if s.now().Sub(rec.UpdatedAt) > s.ttl {
		delete(s.records, userID)
		return false
	}

	if fn != nil {
		fn(&rec.Payload)
	}
	rec.Step = step
	rec.UpdatedAt = s.now()
	s.records[userID] = rec

	return true
}

// Clear removes the user's record and lock. Clearing an absent record is a no-op.
func (s *Store[T]) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, userID)
	delete(s.locks, userID)
}

// IsLocked reports whether the user's advisory lock is currently held.
func (s *Store[T]) IsLocked(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, held := s.locks[userID]
	return held
}

// Lock acquires the user's advisory lock. It does not block: it reports
// false when the lock is already held.
func (s *Store[T]) Lock(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.locks[userID]; held {
		return false
	}
	s.locks[userID] = struct{}{}

	return true
}

// Unlock releases the user's advisory lock. Idempotent.
func (s *Store[T]) Unlock(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.locks, userID)
}

// WithLock acquires the user's lock, runs op and releases the lock in all
// cases, including a panic inside op. When the lock is unavailable it
// returns ErrLocked without running op.
func (s *Store[T]) WithLock(userID int64, op func() error) error {
	if !s.Lock(userID) {
		return ErrLocked
	}
	defer s.Unlock(userID)

	return op()
}

// Stats returns a snapshot of the store.
func (s *Store[T]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Records:     len(s.records),
		LockedUsers: len(s.locks),
	}
	now := s.now()
	for _, rec := range s.records {
		if age := now.Sub(rec.UpdatedAt); age > st.OldestAge {
			st.OldestAge = age
		}
	}

	return st
}

// Run executes the background sweep loop until the context is cancelled.
func (s *Store[T]) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("state sweeper stopped")
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

func (s *Store[T]) sweepExpired() {
	s.mu.Lock()
	now := s.now()
	evicted := 0
	for userID, rec := range s.records {
		if now.Sub(rec.UpdatedAt) > s.ttl {
			delete(s.records, userID)
			evicted++
		}
	}
	s.mu.Unlock()

	if evicted > 0 {
		s.log.Info("evicted expired flow states", slog.Int("count", evicted))
		if s.onEvict != nil {
			s.onEvict(evicted)
		}
	}
}
