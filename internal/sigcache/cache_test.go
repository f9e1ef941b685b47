package sigcache

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	c := New(slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour)

	id := c.Put("5VERYLONGSIGNATURE")
	require.NotEmpty(t, id)
	assert.LessOrEqual(t, len(id), 12)

	sig, ok := c.Get(id)
	require.True(t, ok)
	assert.Equal(t, "5VERYLONGSIGNATURE", sig)

	_, ok = c.Get("unknown")
	assert.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	c := New(slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour)

	now := time.Now()
	c.now = func() time.Time { return now }

	id := c.Put("sig")

	now = now.Add(2 * time.Hour)
	_, ok := c.Get(id)
	assert.False(t, ok)

	// sweep removes what reads have not touched
	id2 := c.Put("sig2")
	now = now.Add(3 * time.Hour)
	c.sweep()
	c.mu.Lock()
	_, stillThere := c.entries[id2]
	c.mu.Unlock()
	assert.False(t, stillThere)
}
