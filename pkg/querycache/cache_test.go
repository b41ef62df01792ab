package querycache

import (
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetPut(t *testing.T) {
	c := New[int](time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("a", 42)
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 42, got)
}

func TestCache_Expiry(t *testing.T) {
	c := New[string](time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Put("k", "v")
	_, ok := c.Get("k")
	assert.True(t, ok)

	now = now.Add(time.Minute + time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestCache_InvalidatePrefix(t *testing.T) {
	c := New[int](time.Minute)
	c.Put("orders/1", 1)
	c.Put("orders/2", 2)
	c.Put("menu", 3)

	c.InvalidatePrefix("orders/")

	_, ok := c.Get("orders/1")
	assert.False(t, ok)
	_, ok = c.Get("orders/2")
	assert.False(t, ok)
	got, ok := c.Get("menu")
	require.True(t, ok)
	assert.Equal(t, 3, got)
}

func TestOptimistic_UpdateSuccess(t *testing.T) {
	c := New[int](time.Minute)
	o := NewOptimistic(c)
	c.Put("k", 1)

	got, err := o.Update("k", func() (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	cached, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, cached)
}

func TestOptimistic_UpdateFailureRestoresPrevious(t *testing.T) {
	c := New[int](time.Minute)
	o := NewOptimistic(c)
	c.Put("k", 1)

	_, err := o.Update("k", func() (int, error) {
		// The stale entry is gone while the operation runs.
		_, ok := c.Get("k")
		assert.False(t, ok)
		return 0, errors.New("boom")
	})
	require.Error(t, err)

	cached, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, cached)
}

func TestOptimistic_UpdateFailureWithoutPrevious(t *testing.T) {
	c := New[int](time.Minute)
	o := NewOptimistic(c)

	_, err := o.Update("k", func() (int, error) { return 0, errors.New("boom") })
	require.Error(t, err)
	_, ok := c.Get("k")
	assert.False(t, ok)
}
