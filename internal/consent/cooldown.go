package consent

import (
	"sync"
	"time"
)

// Cooldowns tracks per-domain handling cooldowns so a site that was just
// resolved is not probed again on every navigation.
type Cooldowns struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]time.Time
}

// NewCooldowns creates a cooldown table with the given TTL.
func NewCooldowns(ttl time.Duration) *Cooldowns {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cooldowns{ttl: ttl, m: make(map[string]time.Time)}
}

// Active reports whether host was handled within the TTL.
func (c *Cooldowns) Active(host string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.m[host]
	if !ok {
		return false
	}
	if time.Since(last) >= c.ttl {
		delete(c.m, host)
		return false
	}
	return true
}

// Set marks host as handled now.
func (c *Cooldowns) Set(host string) {
	c.mu.Lock()
	c.m[host] = time.Now()
	c.mu.Unlock()
}
