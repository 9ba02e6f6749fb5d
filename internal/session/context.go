package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/riftduel/duelsync/pkg/core"
)

// Context holds the session currently being served
type Context struct {
	mu      sync.RWMutex
	session *core.Session
	active  bool
	now     func() time.Time
}

// NewContext creates a Context with no running session
func NewContext() *Context {
	return &Context{
		session: &core.Session{Name: "No session started"},
		now:     time.Now,
	}
}

// Begin starts a new session with a fresh id and returns it
func (c *Context) Begin(name string) *core.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = &core.Session{
		ID:        uuid.New(),
		Name:      name,
		StartedAt: c.now(),
	}
	c.active = true
	return c.session
}

// End stamps the end time on the running session. It returns nil if none is running.
func (c *Context) End() *core.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return nil
	}
	c.session.EndedAt = c.now()
	c.active = false
	return c.session
}

// Get returns the current (or last) session
func (c *Context) Get() *core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Active reports whether a session is running
func (c *Context) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Uptime returns how long the running session has been going, 0 when idle
func (c *Context) Uptime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.active {
		return 0
	}
	return c.now().Sub(c.session.StartedAt)
}
