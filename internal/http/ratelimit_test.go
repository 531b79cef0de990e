package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientLimiter(t *testing.T) {
	disabled := newClientLimiter(0, 5)
	assert.Nil(t, disabled)
	assert.True(t, disabled.Allow("anyone"))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newClientLimiter(1, 2)
	l.now = func() time.Time { return now }
	l.reset = now

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"), "token refilled after one second")

	now = now.Add(2 * time.Hour)
	assert.True(t, l.Allow("a"))
	assert.Len(t, l.limiters, 1, "idle limiters are dropped hourly")
}
