package httpx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRosterFromCounts(t *testing.T) {
	roster := rosterFromCounts(map[string]string{
		"budi":  "2", // two tabs, still present
		"sari":  "1",
		"agus":  "0", // last connection gone
		"wati":  "-1",
		"weird": "x",
	})
	assert.Equal(t, []string{"budi", "sari"}, roster)
}

func TestRosterFromCountsEmpty(t *testing.T) {
	assert.Empty(t, rosterFromCounts(nil))
}
