// Package bundlecache stores downloaded bundles on disk, keyed by
// experience, SDK version, and a content token.
//
// The layout fans entries out over 256 subdirectories named after the
// first byte of the key digest, with mtimes tracking last use so that
// Trim can delete entries that have not been used recently. The layout
// and trimming approach follow the Go build cache.
package bundlecache

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rogpeppe/go-internal/lockedfile"
)

// Key identifies one stored bundle.
type Key struct {
	// ExperienceID is the owning experience identifier.
	ExperienceID string

	// SDKVersion is the bundle's SDK version.
	SDKVersion string

	// Token is a content-hash-like token, typically derived from the
	// bundle URL.
	Token string
}

// digest maps the key to a stable digest.
func (k Key) digest() [sha256.Size]byte {
	joined := k.ExperienceID + "\x00" + k.SDKVersion + "\x00" + k.Token
	return sha256.Sum256([]byte(joined))
}

// Time constants controlling expiration. We refresh an entry's mtime
// on use, at most once per mtimeInterval to limit inode churn, and
// Trim deletes entries unused for longer than trimLimit, scanning at
// most once per trimInterval.
const (
	mtimeInterval = 15 * time.Minute
	trimInterval  = 45 * time.Minute
	trimLimit     = 30 * 24 * time.Hour
)

// Cache is an on-disk bundle cache. Construct with New.
type Cache struct {
	// dirpath is the cache directory path.
	dirpath string

	// timeNow allows mocking time.Now for testing.
	timeNow func() time.Time
}

// New creates a new Cache rooted at dirpath.
func New(dirpath string) *Cache {
	return &Cache{
		dirpath: dirpath,
		timeNow: time.Now,
	}
}

// fsmap maps a key to its directory and file paths.
func (c *Cache) fsmap(key Key) (dpath, fpath string) {
	hs := key.digest()
	dpath = filepath.Join(c.dirpath, fmt.Sprintf("%02x", hs[0]))
	fpath = filepath.Join(dpath, fmt.Sprintf("%x-bundle", hs))
	return
}

// Lookup returns the local path of the bundle stored under key, if any.
func (c *Cache) Lookup(key Key) (string, bool) {
	_, fpath := c.fsmap(key)
	if _, err := os.Stat(fpath); err != nil {
		return "", false
	}
	c.maybeMarkAsUsed(fpath)
	return fpath, true
}

// Put stores a bundle under key and returns its local path. Storage is
// write-once: when the entry already exists the existing path is
// returned and data is ignored.
func (c *Cache) Put(key Key, data []byte) (string, error) {
	dpath, fpath := c.fsmap(key)
	if _, err := os.Stat(fpath); err == nil {
		c.maybeMarkAsUsed(fpath)
		return fpath, nil
	}
	if err := os.MkdirAll(dpath, 0700); err != nil {
		return "", err
	}
	if err := lockedfile.Write(fpath, bytes.NewReader(data), 0600); err != nil {
		return "", err
	}
	return fpath, nil
}

// maybeMarkAsUsed refreshes the entry's mtime so that mtimes roughly
// reflect last use, skipping the update when the current mtime is
// fresh enough.
func (c *Cache) maybeMarkAsUsed(fpath string) {
	info, err := os.Stat(fpath)
	now := c.timeNow()
	if err == nil && now.Sub(info.ModTime()) < mtimeInterval {
		return
	}
	os.Chtimes(fpath, now, now)
}

// Remove deletes the bundle stored under key, if any.
func (c *Cache) Remove(key Key) error {
	_, fpath := c.fsmap(key)
	err := os.Remove(fpath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Trim removes bundles that have not been used recently. It maintains
// the time of the last completed trim in dirpath/trim.txt and returns
// quickly when a trim happened recently, which is the common case.
func (c *Cache) Trim() {
	now := c.timeNow()
	trimfilepath := filepath.Join(c.dirpath, "trim.txt")

	data, _ := os.ReadFile(trimfilepath)
	previous, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err == nil && now.Sub(time.Unix(previous, 0)) < trimInterval {
		return
	}

	// subtract an extra mtimeInterval to account for the imprecision
	// of the refreshed mtimes
	cutoff := now.Add(-trimLimit - mtimeInterval)
	for idx := 0; idx < 256; idx++ {
		c.trimSubdir(filepath.Join(c.dirpath, fmt.Sprintf("%02x", idx)), cutoff)
	}

	os.WriteFile(trimfilepath, []byte(fmt.Sprintf("%d", now.Unix())), 0666)
}

// trimSubdir trims one fan-out subdirectory. Directory entries are
// read in full before any deletion so removals cannot invalidate the
// directory scan.
func (c *Cache) trimSubdir(subdir string, cutoff time.Time) {
	df, err := os.Open(subdir)
	if err != nil {
		return
	}
	names, _ := df.Readdirnames(-1)
	df.Close()

	for _, name := range names {
		if !strings.HasSuffix(name, "-bundle") {
			continue
		}
		entry := filepath.Join(subdir, name)
		info, err := os.Stat(entry)
		if err == nil && info.ModTime().Before(cutoff) {
			os.Remove(entry)
		}
	}
}
