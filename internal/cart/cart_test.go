package cart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, IsExpired(now.Add(time.Minute), now), "future deadline")
	assert.False(t, IsExpired(now, now), "exactly at deadline is still live")
	assert.True(t, IsExpired(now.Add(-time.Second), now), "past deadline")
	assert.False(t, IsExpired(time.Time{}, now), "zero deadline means no cart row yet")
}
