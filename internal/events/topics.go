package events

// All store events share one topic; the worker fans them out into per-store
// redis channels.
const TopicStoreEvents = "store.events"

// Partition key = store_id so one store's events keep their order.
func PartitionKey(storeID string) []byte { return []byte(storeID) }
