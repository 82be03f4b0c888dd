package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusCompleted, false},
		{StatusApproved, StatusCompleted, true},
		{StatusApproved, StatusCancelled, false},
		{StatusApproved, StatusPending, false},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusApproved, false},
		{StatusRejected, StatusApproved, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusRejected} {
		for _, to := range []Status{StatusPending, StatusApproved, StatusCompleted, StatusCancelled, StatusRejected} {
			assert.False(t, CanTransition(s, to), "%s must be terminal", s)
		}
	}
}
