// Package bundle downloads and caches the executable bundles that
// resolved manifests point to.
package bundle

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/expo/exphost/internal/bundlecache"
	"github.com/expo/exphost/internal/httpclientx"
	"github.com/expo/exphost/internal/manifest"
	"github.com/expo/exphost/internal/model"
)

// Loader loads bundles. The zero value is invalid; initialize the
// MANDATORY fields.
type Loader struct {
	// HTTP is the MANDATORY HTTP configuration.
	HTTP *httpclientx.Config

	// Cache is the MANDATORY on-disk bundle cache.
	Cache *bundlecache.Cache

	// Logger is the OPTIONAL logger.
	Logger model.Logger
}

// cacheKey derives the cache key for a manifest's bundle. The token is
// a digest of the bundle URL, which embeds the content hash for
// published bundles.
func cacheKey(m *manifest.Manifest) bundlecache.Key {
	return bundlecache.Key{
		ExperienceID: m.ID,
		SDKVersion:   m.SDKVersion,
		Token:        fmt.Sprintf("%x", sha256.Sum256([]byte(m.BundleURL))),
	}
}

// Load fetches the bundle referenced by the manifest and returns its
// local path. Unless forceNetwork is set, a cached copy wins; when a
// cache-preferring attempt fails to download, Load retries once
// forcing the network before giving up.
func (l *Loader) Load(ctx context.Context, m *manifest.Manifest, forceNetwork bool) (string, error) {
	logger := model.ValidLoggerOrDefault(l.Logger)
	key := cacheKey(m)

	if !forceNetwork {
		if path, found := l.Cache.Lookup(key); found {
			logger.Debugf("bundle: %s: using cached bundle at %s", m.ID, path)
			return path, nil
		}
	}

	path, err := l.download(ctx, m, key, forceNetwork)
	if err != nil && !forceNetwork {
		logger.Warnf("bundle: %s: cache-preferring load failed, retrying with network: %s",
			m.ID, err.Error())
		return l.download(ctx, m, key, true)
	}
	return path, err
}

// Evict removes the cached bundle for the given manifest, if any.
func (l *Loader) Evict(m *manifest.Manifest) error {
	return l.Cache.Remove(cacheKey(m))
}

// download performs one download attempt and stores the result.
func (l *Loader) download(ctx context.Context, m *manifest.Manifest, key bundlecache.Key, forceNetwork bool) (string, error) {
	opts := &httpclientx.Options{CacheMode: httpclientx.CacheDefault}
	if forceNetwork {
		opts.CacheMode = httpclientx.CacheBypass
	}
	data, err := httpclientx.GetRaw(ctx, l.HTTP, m.BundleURL, opts)
	if err != nil {
		return "", err
	}
	return l.Cache.Put(key, data)
}
