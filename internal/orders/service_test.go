package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalesceLinesMergesDuplicates(t *testing.T) {
	got := coalesceLines([]PlaceItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
		{ProductID: "p1", Quantity: 3},
	})
	require.Len(t, got, 2)
	assert.Equal(t, PlaceItem{ProductID: "p1", Quantity: 5}, got[0])
	assert.Equal(t, PlaceItem{ProductID: "p2", Quantity: 1}, got[1])
}

func TestCoalesceLinesNoDuplicates(t *testing.T) {
	in := []PlaceItem{{ProductID: "p1", Quantity: 1}, {ProductID: "p2", Quantity: 2}}
	assert.Equal(t, in, coalesceLines(in))
}
