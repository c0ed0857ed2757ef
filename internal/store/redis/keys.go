package redis

const (
	// KeyLocalSnapshot holds the compressed local tree snapshot
	KeyLocalSnapshot = "marksync:snapshot:local"
	// KeyRemoteSnapshot holds the compressed remote tree snapshot
	KeyRemoteSnapshot = "marksync:snapshot:remote"
	// KeyHistory is the capped list of resolution history entries
	KeyHistory = "marksync:history"
	// KeyQueueIDs is the FIFO list of offline queue entry ids
	KeyQueueIDs = "marksync:queue:ids"
	// KeyPrefixQueueEntry is the prefix for offline queue entry payloads
	KeyPrefixQueueEntry = "marksync:queue:entry:"
	// KeyPrefixNotes is the prefix for per-node notes
	KeyPrefixNotes = "marksync:meta:notes:"
	// KeyPrefixTags is the prefix for per-node tags
	KeyPrefixTags = "marksync:meta:tags:"
)

// QueueEntryKey returns the Redis key for an offline queue entry by id
func QueueEntryKey(id string) string {
	return KeyPrefixQueueEntry + id
}

// NotesKey returns the Redis key for a node's notes
func NotesKey(nodeID string) string {
	return KeyPrefixNotes + nodeID
}

// TagsKey returns the Redis key for a node's tags
func TagsKey(nodeID string) string {
	return KeyPrefixTags + nodeID
}
