package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetDelete(t *testing.T) {
	c := New[string, int](0)
	c.Set(":1.4", 1)

	v, ok := c.Get(":1.4")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get(":1.5")
	assert.False(t, ok)

	c.Delete(":1.4")
	_, ok = c.Get(":1.4")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestExpiry(t *testing.T) {
	tests := []struct {
		name  string
		ttl   time.Duration
		alive bool
	}{
		{"zero ttl keeps entries", 0, true},
		{"long ttl", time.Hour, true},
		{"short ttl", 10 * time.Millisecond, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New[string, struct{}](tt.ttl)
			c.Set(":1.9", struct{}{})
			time.Sleep(30 * time.Millisecond)

			_, ok := c.Get(":1.9")
			assert.Equal(t, tt.alive, ok)

			// expired entries linger until cleaned
			assert.Equal(t, 1, c.Len())
			c.CleanExpired()
			if tt.alive {
				assert.Equal(t, 1, c.Len())
			} else {
				assert.Equal(t, 0, c.Len())
			}
		})
	}
}

func TestSetRefreshesDeadline(t *testing.T) {
	c := New[string, int](50 * time.Millisecond)
	c.Set("k", 1)
	time.Sleep(30 * time.Millisecond)
	c.Set("k", 2)
	time.Sleep(30 * time.Millisecond)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestDeleteFunc(t *testing.T) {
	c := New[string, int](0)
	c.Set(":1.1/a", 1)
	c.Set(":1.1/b", 2)
	c.Set(":1.2/a", 3)

	n := c.DeleteFunc(func(key string) bool { return strings.HasPrefix(key, ":1.1/") })
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(":1.2/a")
	assert.True(t, ok)
}
