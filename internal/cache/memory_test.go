package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	type payload struct {
		N int    `json:"n"`
		S string `json:"s"`
	}

	require.NoError(t, m.Set(ctx, "k", payload{N: 1, S: "x"}, 0))

	var got payload
	found, err := m.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{N: 1, S: "x"}, got)

	found, err = m.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "k", 42, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	var got int
	found, err := m.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryDeletePattern(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "posts:page:1", 1, 0))
	require.NoError(t, m.Set(ctx, "posts:page:2", 2, 0))
	require.NoError(t, m.Set(ctx, "other", 3, 0))

	require.NoError(t, m.DeletePattern(ctx, "posts:page:*"))

	var got int
	found, _ := m.Get(ctx, "posts:page:1", &got)
	assert.False(t, found)
	found, _ = m.Get(ctx, "other", &got)
	assert.True(t, found)
}
