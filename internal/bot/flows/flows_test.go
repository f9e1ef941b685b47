package flows

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/solmate-labs/solmate-bot/internal/state"
)

type stubFlow struct {
	name    string
	waiting map[int64]bool
	handled int
	aborted []int64
}

func newStubFlow(name string) *stubFlow {
	return &stubFlow{name: name, waiting: make(map[int64]bool)}
}

func (f *stubFlow) Name() string { return f.name }

func (f *stubFlow) AwaitsText(userID int64) bool { return f.waiting[userID] }

func (f *stubFlow) HandleText(telebot.Context) error {
	f.handled++
	return nil
}

func (f *stubFlow) Abort(userID int64) {
	f.aborted = append(f.aborted, userID)
	delete(f.waiting, userID)
}

func (f *stubFlow) Stats() state.Stats { return state.Stats{Records: len(f.waiting)} }

func (f *stubFlow) Run(ctx context.Context) { <-ctx.Done() }

// senderContext provides only what the registry touches; everything else
// panics via the embedded nil interface.
type senderContext struct {
	telebot.Context
	sender *telebot.User
}

func (c senderContext) Sender() *telebot.User { return c.sender }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_HandleTextClaimedByWaitingFlow(t *testing.T) {
	first := newStubFlow("send_sol")
	second := newStubFlow("mint")
	second.waiting[42] = true

	registry := NewRegistry(testLogger(), first, second)

	handled, err := registry.HandleText(senderContext{sender: &telebot.User{ID: 42}})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, 0, first.handled)
	assert.Equal(t, 1, second.handled)
}

func TestRegistry_HandleTextIgnoredWhenNobodyWaits(t *testing.T) {
	registry := NewRegistry(testLogger(), newStubFlow("send_sol"), newStubFlow("mint"))

	handled, err := registry.HandleText(senderContext{sender: &telebot.User{ID: 7}})
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestRegistry_HandleTextFirstFlowWins(t *testing.T) {
	first := newStubFlow("send_sol")
	second := newStubFlow("send_spl")
	first.waiting[9] = true
	second.waiting[9] = true

	registry := NewRegistry(testLogger(), first, second)

	handled, err := registry.HandleText(senderContext{sender: &telebot.User{ID: 9}})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, 1, first.handled)
	assert.Equal(t, 0, second.handled, "only the first waiting flow may claim the text")
}

func TestRegistry_AbortAllClearsEveryFlow(t *testing.T) {
	first := newStubFlow("send_sol")
	second := newStubFlow("distribute")
	first.waiting[5] = true
	second.waiting[5] = true

	registry := NewRegistry(testLogger(), first, second)
	registry.AbortAll(5)

	assert.Equal(t, []int64{5}, first.aborted)
	assert.Equal(t, []int64{5}, second.aborted)

	handled, err := registry.HandleText(senderContext{sender: &telebot.User{ID: 5}})
	require.NoError(t, err)
	assert.False(t, handled, "aborted user must no longer be waiting anywhere")
}

func TestRegistry_ActiveRecords(t *testing.T) {
	first := newStubFlow("send_sol")
	second := newStubFlow("mint")
	first.waiting[1] = true
	first.waiting[2] = true
	second.waiting[3] = true

	registry := NewRegistry(testLogger(), first, second)
	assert.Equal(t, 3, registry.ActiveRecords())
}
