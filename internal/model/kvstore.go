package model

//
// Durable key-value store
//

// KeyValueStore is a generic key-value store. We use this interface
// to persist manifests, experience records, and related state.
type KeyValueStore interface {
	// Get gets the value of the given key or returns an error.
	Get(key string) ([]byte, error)

	// Set sets the value of the given key.
	Set(key string, value []byte) error
}
