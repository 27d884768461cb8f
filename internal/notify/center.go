package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level classifies a notification for the frontend
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one pending user-visible message. The message key and
// params are stored raw and localized when the feed is read, so the text
// follows the Accept-Language of the reading request, not of the request
// that produced it.
type Notification struct {
	ID         string
	Level      Level
	MessageKey string
	Params     map[string]string
	CreatedAt  time.Time
}

type feed struct {
	touched time.Time
	items   []Notification
}

// Center holds per-workspace notification feeds in memory. Feeds are
// dropped after a TTL measured from the last push or drain.
type Center struct {
	mu    sync.Mutex
	feeds map[string]*feed
	ttl   time.Duration
}

// NewCenter creates a notification center and starts its cleanup loop
func NewCenter(ttl time.Duration) *Center {
	c := &Center{
		feeds: make(map[string]*feed),
		ttl:   ttl,
	}
	go c.cleanupLoop()
	return c
}

// Push appends a notification to the workspace's feed.
// Safe to call on a nil Center; callers treat the feed as optional.
func (c *Center) Push(workspaceID string, level Level, messageKey string, params map[string]string) {
	if c == nil || workspaceID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.feeds[workspaceID]
	if !ok {
		f = &feed{}
		c.feeds[workspaceID] = f
	}
	f.touched = time.Now()
	f.items = append(f.items, Notification{
		ID:         uuid.New().String(),
		Level:      level,
		MessageKey: messageKey,
		Params:     params,
		CreatedAt:  time.Now(),
	})
}

// Drain returns the workspace's pending notifications in push order and
// clears the feed. An unknown workspace drains to an empty slice.
func (c *Center) Drain(workspaceID string) []Notification {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.feeds[workspaceID]
	if !ok || len(f.items) == 0 {
		return nil
	}

	items := f.items
	f.items = nil
	f.touched = time.Now()
	return items
}

// DropWorkspace removes the feed of a deleted workspace
func (c *Center) DropWorkspace(workspaceID string) {
	if c == nil {
		return
	}

	c.mu.Lock()
	delete(c.feeds, workspaceID)
	c.mu.Unlock()
}

func (c *Center) cleanupLoop() {
	ticker := time.NewTicker(c.ttl / 2)
	defer ticker.Stop()

	for range ticker.C {
		c.cleanup()
	}
}

func (c *Center) cleanup() {
	cutoff := time.Now().Add(-c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	for id, f := range c.feeds {
		if f.touched.Before(cutoff) {
			delete(c.feeds, id)
		}
	}
}
