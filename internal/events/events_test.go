package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	env := New(TypeOrderCreated, "store-1", "pos-api", OrderEventPayload{OrderID: "o1", Status: "pending"})

	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, TypeOrderCreated, env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "store-1", env.StoreID)
	assert.Equal(t, "pos-api", env.Producer)
	assert.False(t, env.OccurredAt.IsZero())

	var p OrderEventPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "o1", p.OrderID)
}

func TestPartitionKeyIsStoreID(t *testing.T) {
	// same store always lands on the same partition
	assert.Equal(t, []byte("store-1"), PartitionKey("store-1"))
	assert.NotEqual(t, PartitionKey("store-1"), PartitionKey("store-2"))
}
