package trie

// DB is the key/value store the trie keeps its nodes in.
type DB interface {
	// Update runs f in a read-write transaction. If f returns an error,
	// none of its changes are kept.
	Update(f func(Bucket) error) error
	// View runs f in a read-only transaction.
	View(f func(Bucket) error) error
	Close() error
}

// Bucket gives access to the key/value pairs of a transaction.
type Bucket interface {
	Delete([]byte) error
	Put([]byte, []byte) error
	Get([]byte) []byte
	ForEach(func(k, v []byte) error) error
}
