package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetGet(t *testing.T) {
	c := New(time.Minute, 0, 10)

	c.Set("a", 1)
	value, found := c.Get("a")
	assert.True(t, found)
	assert.Equal(t, 1, value)

	_, found = c.Get("missing")
	assert.False(t, found)
}

func TestExpiration(t *testing.T) {
	c := New(time.Minute, 0, 10)

	c.SetWithExpiration("short", "v", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, found := c.Get("short")
	assert.False(t, found)
}

func TestMaxItemsEviction(t *testing.T) {
	c := New(time.Minute, 0, 2)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	assert.Equal(t, 2, c.Len())
	_, found := c.Get("c")
	assert.True(t, found)
}

func TestFlush(t *testing.T) {
	c := New(time.Minute, 0, 10)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Flush()

	assert.Zero(t, c.Len())
}
