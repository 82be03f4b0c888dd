package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAuditWhereStoreOnly(t *testing.T) {
	where, args := buildAuditWhere("s1", Filter{})
	assert.Equal(t, "store_id = $1", where)
	assert.Equal(t, []any{"s1"}, args)
}

func TestBuildAuditWhereAllFilters(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	where, args := buildAuditWhere("s1", Filter{
		ProductID: "p1",
		Action:    ActionSale,
		From:      from,
		To:        to,
		Search:    "budi",
	})
	assert.Equal(t,
		"store_id = $1 AND product_id = $2 AND action = $3 AND created_at >= $4 AND created_at <= $5 AND (actor ILIKE $6 OR reason ILIKE $6)",
		where)
	require.Len(t, args, 6)
	assert.Equal(t, "s1", args[0])
	assert.Equal(t, "p1", args[1])
	assert.Equal(t, "sale", args[2])
	assert.Equal(t, from, args[3])
	assert.Equal(t, to, args[4])
	assert.Equal(t, "%budi%", args[5])
}

func TestReplayReconstructsQuantity(t *testing.T) {
	entries := []Entry{
		{Action: ActionRestock, QuantityChange: 10},
		{Action: ActionSale, QuantityChange: -3},
		{Action: ActionSale, QuantityChange: -2},
		{Action: ActionCancellation, QuantityChange: 2},
		{Action: ActionAdjustment, QuantityChange: -1},
	}
	assert.Equal(t, 11, Replay(5, entries))
	assert.Equal(t, 6, Replay(0, entries))
}

func TestInsufficientStockErrorMessage(t *testing.T) {
	err := &InsufficientStockError{ProductID: "p9", Requested: 4, Available: 1}
	assert.Contains(t, err.Error(), "p9")
	assert.Contains(t, err.Error(), "requested 4")
	assert.Contains(t, err.Error(), "available 1")
}

func TestDeltaValidate(t *testing.T) {
	base := Delta{ProductID: "p1", StoreID: "s1", Change: -1, Action: ActionSale}
	assert.NoError(t, base.validate())

	d := base
	d.Change = 0
	assert.ErrorIs(t, d.validate(), ErrValidation)

	d = base
	d.Action = "banana"
	assert.ErrorIs(t, d.validate(), ErrValidation)

	d = base
	d.StoreID = ""
	assert.ErrorIs(t, d.validate(), ErrValidation)
}
