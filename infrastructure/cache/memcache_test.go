package cache_test

import (
	"testing"
	"time"

	"medichat/infrastructure/cache"

	"github.com/stretchr/testify/assert"
)

func TestMemCache_SetGet(t *testing.T) {
	c := cache.NewMemCache(0)
	defer c.Close()

	c.Set("name:u1", "Dr. Alice Cooper", 0)

	v, ok := c.Get("name:u1")
	assert.True(t, ok)
	assert.Equal(t, "Dr. Alice Cooper", v)

	_, ok = c.Get("name:u2")
	assert.False(t, ok)
}

func TestMemCache_TTLExpiry(t *testing.T) {
	c := cache.NewMemCache(0)
	defer c.Close()

	c.Set("name:u1", "Dr. Alice Cooper", 20*time.Millisecond)

	_, ok := c.Get("name:u1")
	assert.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	_, ok = c.Get("name:u1")
	assert.False(t, ok)
}

func TestMemCache_DeleteAndFlush(t *testing.T) {
	c := cache.NewMemCache(0)
	defer c.Close()

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Flush()
	_, ok = c.Get("b")
	assert.False(t, ok)
}
