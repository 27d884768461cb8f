package notify_test

import (
	"testing"
	"time"

	"github.com/ledgerscan/ledgerscan-backend/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCenter_PushAndDrain(t *testing.T) {
	c := notify.NewCenter(time.Hour)

	c.Push("ws-1", notify.LevelSuccess, "notifications.export_delivered", map[string]string{"filename": "a.csv"})
	c.Push("ws-1", notify.LevelError, "notifications.export_failed", map[string]string{"filename": "b.csv", "error": "boom"})
	c.Push("ws-2", notify.LevelWarning, "notifications.export_empty", nil)

	items := c.Drain("ws-1")
	require.Len(t, items, 2)
	assert.Equal(t, notify.LevelSuccess, items[0].Level)
	assert.Equal(t, "notifications.export_delivered", items[0].MessageKey)
	assert.Equal(t, "a.csv", items[0].Params["filename"])
	assert.Equal(t, notify.LevelError, items[1].Level)
	assert.NotEqual(t, items[0].ID, items[1].ID)

	// Draining clears the feed.
	assert.Empty(t, c.Drain("ws-1"))

	// Other workspaces are untouched.
	other := c.Drain("ws-2")
	require.Len(t, other, 1)
	assert.Equal(t, notify.LevelWarning, other[0].Level)
}

func TestCenter_UnknownWorkspace(t *testing.T) {
	c := notify.NewCenter(time.Hour)
	assert.Empty(t, c.Drain("missing"))
}

func TestCenter_NilSafe(t *testing.T) {
	var c *notify.Center

	assert.NotPanics(t, func() {
		c.Push("ws-1", notify.LevelSuccess, "notifications.export_delivered", nil)
		c.DropWorkspace("ws-1")
	})
	assert.Empty(t, c.Drain("ws-1"))
}

func TestCenter_DropWorkspace(t *testing.T) {
	c := notify.NewCenter(time.Hour)

	c.Push("ws-1", notify.LevelSuccess, "notifications.export_delivered", nil)
	c.DropWorkspace("ws-1")

	assert.Empty(t, c.Drain("ws-1"))
}

func TestCenter_ExpiresIdleFeeds(t *testing.T) {
	c := notify.NewCenter(50 * time.Millisecond)

	c.Push("ws-1", notify.LevelSuccess, "notifications.export_delivered", nil)

	// Draining resets the feed's TTL, so wait out the sweep before the
	// single probe instead of polling.
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, c.Drain("ws-1"))
}
