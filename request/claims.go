package request

import (
	"sync"
	"time"

	"github.com/b0bbywan/go-desktop-portal/cache"
)

// DepartedTTL is how long a disconnected sender is remembered. Calls that
// were already past authorisation when it left finish well within it.
const DepartedTTL = 5 * time.Minute

// Claims is the process wide set of request and session paths in use,
// along with the senders that left the bus.
type Claims struct {
	mu    sync.Mutex
	paths map[string]struct{}

	departed *cache.Cache[string, struct{}]
}

func NewClaims() *Claims {
	return NewClaimsWithTTL(DepartedTTL)
}

func NewClaimsWithTTL(ttl time.Duration) *Claims {
	return &Claims{
		paths:    make(map[string]struct{}),
		departed: cache.New[string, struct{}](ttl),
	}
}

// Claim reserves path. It returns false when path is already taken.
func (c *Claims) Claim(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, taken := c.paths[path]; taken {
		return false
	}
	c.paths[path] = struct{}{}
	return true
}

func (c *Claims) Unclaim(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.paths, path)
}

func (c *Claims) Claimed(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, taken := c.paths[path]
	return taken
}

func (c *Claims) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.paths)
}

// Depart records that sender left the bus. Unique names are never reused,
// so objects for it can be refused outright.
func (c *Claims) Depart(sender string) {
	c.departed.CleanExpired()
	c.departed.Set(sender, struct{}{})
}

func (c *Claims) Departed(sender string) bool {
	_, ok := c.departed.Get(sender)
	return ok
}
