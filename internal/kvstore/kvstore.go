// Package kvstore contains key-value stores implementing the
// model.KeyValueStore interface.
package kvstore

import "errors"

// ErrNoSuchKey indicates that there's no value for the given key.
var ErrNoSuchKey = errors.New("no such key")
