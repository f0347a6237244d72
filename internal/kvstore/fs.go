package kvstore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/expo/exphost/internal/model"
	"github.com/rogpeppe/go-internal/lockedfile"
)

// FS is a file-system based key-value store. Writes go through
// lockedfile so that concurrent writers for the same key cannot
// produce a torn file; the de facto policy is last writer wins.
type FS struct {
	basedir string
}

var _ model.KeyValueStore = &FS{}

// NewFS creates a new FS rooted at basedir, creating the
// directory if needed.
func NewFS(basedir string) (*FS, error) {
	if err := os.MkdirAll(basedir, 0700); err != nil {
		return nil, err
	}
	return &FS{basedir: basedir}, nil
}

// filename returns the filename for a given key.
func (kvs *FS) filename(key string) string {
	return filepath.Join(kvs.basedir, key)
}

// Get returns the specified key's value. In case of error, the
// error type is such that errors.Is(err, ErrNoSuchKey).
func (kvs *FS) Get(key string) ([]byte, error) {
	data, err := lockedfile.Read(kvs.filename(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchKey, err.Error())
	}
	return data, nil
}

// Set sets the value of a specific key.
func (kvs *FS) Set(key string, value []byte) error {
	return lockedfile.Write(kvs.filename(key), bytes.NewReader(value), 0600)
}
