package state

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sendPayload struct {
	Sender    string
	Recipient string
	Amount    uint64
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(clock *fakeClock) *Store[sendPayload] {
	return New[sendPayload](testLogger(), WithClock(clock.Now))
}

func TestStore_TTL(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(clock)
	userID := int64(42)

	store.Set(userID, "enter_recipient", sendPayload{Sender: "abc"})

	clock.Advance(DefaultTTL - time.Second)
	rec, ok := store.Get(userID)
	require.True(t, ok)
	assert.Equal(t, "enter_recipient", rec.Step)
	assert.Equal(t, "abc", rec.Payload.Sender)

	clock.Advance(2 * time.Second)
	_, ok = store.Get(userID)
	assert.False(t, ok, "record past TTL must be reported absent without a sweep")

	// lazy eviction removed it, so a later read within a fresh TTL window still misses
	_, ok = store.Get(userID)
	assert.False(t, ok)
}

func TestStore_SetReplaces(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(clock)
	userID := int64(7)

	store.Set(userID, "enter_recipient", sendPayload{Sender: "first"})
	store.Set(userID, "enter_amount", sendPayload{Sender: "second"})

	rec, ok := store.Get(userID)
	require.True(t, ok)
	assert.Equal(t, "enter_amount", rec.Step)
	assert.Equal(t, "second", rec.Payload.Sender)
	assert.Empty(t, rec.Payload.Recipient, "replacement must not merge prior payload")
	assert.Equal(t, 1, store.Stats().Records)
}

func TestStore_ClearIdempotent(t *testing.T) {
	store := newTestStore(newFakeClock())
	userID := int64(13)

	store.Set(userID, "confirm", sendPayload{})

	store.Clear(userID)
	_, ok := store.Get(userID)
	assert.False(t, ok)

	store.Clear(userID)
	_, ok = store.Get(userID)
	assert.False(t, ok)
}

func TestStore_UpdateMissing(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(clock)
	userID := int64(21)

	ok := store.Update(userID, func(p *sendPayload) { p.Amount = 1 })
	assert.False(t, ok)

	store.Set(userID, "enter_amount", sendPayload{})
	clock.Advance(DefaultTTL + time.Minute)

	ok = store.Update(userID, func(p *sendPayload) { p.Amount = 1 })
	assert.False(t, ok, "expired record must not be updatable")
}

func TestStore_UpdateRefreshesTimestamp(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(clock)
	userID := int64(22)

	store.Set(userID, "enter_amount", sendPayload{Sender: "w"})

	clock.Advance(20 * time.Minute)
	ok := store.Update(userID, func(p *sendPayload) { p.Amount = 500 })
	require.True(t, ok)

	// 20 + 20 minutes since Set, but only 20 since the update
	clock.Advance(20 * time.Minute)
	rec, ok := store.Get(userID)
	require.True(t, ok)
	assert.Equal(t, uint64(500), rec.Payload.Amount)
	assert.Equal(t, "w", rec.Payload.Sender)
}

func TestStore_Advance(t *testing.T) {
	store := newTestStore(newFakeClock())
	userID := int64(23)

	assert.False(t, store.Advance(userID, "confirm", nil))

	store.Set(userID, "enter_amount", sendPayload{Sender: "w"})
	ok := store.Advance(userID, "confirm", func(p *sendPayload) { p.Amount = 9 })
	require.True(t, ok)

	rec, ok := store.Get(userID)
	require.True(t, ok)
	assert.Equal(t, "confirm", rec.Step)
	assert.Equal(t, uint64(9), rec.Payload.Amount)
	assert.Equal(t, "confirm", store.Step(userID))
}

func TestStore_LockMutualExclusion(t *testing.T) {
	store := newTestStore(newFakeClock())
	userID := int64(77)

	require.True(t, store.Lock(userID))
	assert.False(t, store.Lock(userID))
	assert.True(t, store.IsLocked(userID))

	store.Unlock(userID)
	assert.True(t, store.Lock(userID))

	store.Unlock(userID)
	store.Unlock(userID) // idempotent
	assert.False(t, store.IsLocked(userID))
}

func TestStore_WithLock(t *testing.T) {
	store := newTestStore(newFakeClock())
	userID := int64(78)

	opErr := errors.New("submission failed")
	err := store.WithLock(userID, func() error { return opErr })
	assert.ErrorIs(t, err, opErr)
	assert.True(t, store.Lock(userID), "lock must be released after a failing operation")
	store.Unlock(userID)

	require.True(t, store.Lock(userID))
	err = store.WithLock(userID, func() error {
		t.Fatal("operation must not run when the lock is held")
		return nil
	})
	assert.ErrorIs(t, err, ErrLocked)
	store.Unlock(userID)
}

func TestStore_WithLockReleasesOnPanic(t *testing.T) {
	store := newTestStore(newFakeClock())
	userID := int64(79)

	func() {
		defer func() { _ = recover() }()
		_ = store.WithLock(userID, func() error { panic("boom") })
	}()

	assert.True(t, store.Lock(userID), "lock must be released after a panicking operation")
}

func TestStore_WithLockConcurrent(t *testing.T) {
	store := newTestStore(newFakeClock())
	userID := int64(80)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- store.WithLock(userID, func() error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	err := store.WithLock(userID, func() error { return nil })
	assert.ErrorIs(t, err, ErrLocked)

	close(release)
	require.NoError(t, <-done)
}

func TestStore_ClearReleasesLock(t *testing.T) {
	store := newTestStore(newFakeClock())
	userID := int64(81)

	store.Set(userID, "confirm", sendPayload{})
	require.True(t, store.Lock(userID))

	store.Clear(userID)
	assert.False(t, store.IsLocked(userID))
	assert.True(t, store.Lock(userID))
}

func TestStore_SweepEvictsExpired(t *testing.T) {
	clock := newFakeClock()
	evicted := make(chan int, 1)
	store := New[sendPayload](testLogger(),
		WithClock(clock.Now),
		WithEvictionObserver(func(count int) { evicted <- count }),
	)

	store.Set(1, "a", sendPayload{})
	store.Set(2, "b", sendPayload{})
	clock.Advance(10 * time.Minute)
	store.Set(3, "c", sendPayload{})

	clock.Advance(25 * time.Minute)
	store.sweepExpired()

	assert.Equal(t, 2, <-evicted)
	assert.Equal(t, 1, store.Stats().Records)
	_, ok := store.Get(3)
	assert.True(t, ok)
}

func TestStore_Stats(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(clock)

	store.Set(1, "a", sendPayload{})
	clock.Advance(3 * time.Minute)
	store.Set(2, "b", sendPayload{})
	store.Lock(2)

	st := store.Stats()
	assert.Equal(t, 2, st.Records)
	assert.Equal(t, 1, st.LockedUsers)
	assert.Equal(t, 3*time.Minute, st.OldestAge)
}
