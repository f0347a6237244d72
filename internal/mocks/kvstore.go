package mocks

// KeyValueStore allows mocking a model.KeyValueStore.
type KeyValueStore struct {
	MockGet func(key string) ([]byte, error)

	MockSet func(key string, value []byte) error
}

// Get calls MockGet.
func (kvs *KeyValueStore) Get(key string) ([]byte, error) {
	return kvs.MockGet(key)
}

// Set calls MockSet.
func (kvs *KeyValueStore) Set(key string, value []byte) error {
	return kvs.MockSet(key, value)
}
