// Package manifeststore persists experience records and the last known
// good manifest+bundle pairs in a model.KeyValueStore.
//
// Keys are derived from normalized experience URLs so that two URLs
// differing only by cache-defeating query parameters share one record.
// Writes are upserts; same-key concurrent writers get last-writer-wins
// semantics with whatever atomicity the underlying store provides.
package manifeststore

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/expo/exphost/internal/manifest"
	"github.com/expo/exphost/internal/model"
)

// ExperienceRecord is the persisted row for one experience URL.
type ExperienceRecord struct {
	// ExperienceURL is the normalized experience URL.
	ExperienceURL string `json:"experienceUrl"`

	// ManifestURL is the canonical manifest fetch URL.
	ManifestURL string `json:"manifestUrl"`

	// LastKnownManifest is the JSON of the last verified manifest.
	LastKnownManifest json.RawMessage `json:"lastKnownManifest,omitempty"`

	// BundleURL is the bundle URL of the last verified manifest.
	BundleURL string `json:"bundleUrl"`

	// LastLoadHadError says whether the previous launch for this
	// experience ended in an error.
	LastLoadHadError bool `json:"lastLoadHadError"`

	// UpdatedAt is when the record was last written.
	UpdatedAt time.Time `json:"updatedAt"`
}

// GoodManifest is a fully downloaded manifest+bundle pair keyed by
// manifest URL and used to answer cached fetches without a network
// round trip.
type GoodManifest struct {
	// ManifestJSON is the manifest body.
	ManifestJSON json.RawMessage `json:"manifest"`

	// Signature is the manifest signature, when present.
	Signature string `json:"signature,omitempty"`

	// BundleURL is the manifest's bundle URL.
	BundleURL string `json:"bundleUrl"`

	// BundlePath is the local path of the downloaded bundle.
	BundlePath string `json:"bundlePath"`

	// StoredAt is when the pair was stored.
	StoredAt time.Time `json:"storedAt"`
}

// Store is a durable, keyed cache of experience records and verified
// manifests. Construct with New.
type Store struct {
	kvs model.KeyValueStore
}

// New creates a new Store using the given key-value store.
func New(kvs model.KeyValueStore) *Store {
	return &Store{kvs: kvs}
}

// experienceKey maps a normalized URL to a flat store key. We hash the
// URL because filesystem-backed stores use keys as file names.
func experienceKey(normalizedURL string) string {
	return fmt.Sprintf("experience-%x.state", sha256.Sum256([]byte(normalizedURL)))
}

// manifestKey maps a manifest URL to the last-known-good record key.
func manifestKey(manifestURL string) string {
	return fmt.Sprintf("manifest-%x.state", sha256.Sum256([]byte(manifestURL)))
}

// ExperienceRecord returns the record for the given experience URL.
// The error matches kvstore.ErrNoSuchKey when there is no record.
func (s *Store) ExperienceRecord(experienceURL string) (*ExperienceRecord, error) {
	key, err := normalizedExperienceKey(experienceURL)
	if err != nil {
		return nil, err
	}
	data, err := s.kvs.Get(key)
	if err != nil {
		return nil, err
	}
	var rec ExperienceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrParse, err.Error())
	}
	return &rec, nil
}

// UpsertExperience creates or replaces the record for its experience URL.
func (s *Store) UpsertExperience(rec *ExperienceRecord) error {
	key, err := normalizedExperienceKey(rec.ExperienceURL)
	if err != nil {
		return err
	}
	rec.UpdatedAt = time.Now()
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.kvs.Set(key, data)
}

// SetLastLoadHadError records whether the previous launch for the
// experience ended in an error, creating the record when absent.
func (s *Store) SetLastLoadHadError(experienceURL string, hadError bool) error {
	rec, err := s.ExperienceRecord(experienceURL)
	if err != nil {
		rec = &ExperienceRecord{ExperienceURL: experienceURL}
	}
	rec.ExperienceURL = experienceURL
	rec.LastLoadHadError = hadError
	return s.UpsertExperience(rec)
}

// LastKnownGood returns the last fully downloaded manifest+bundle pair
// for the given manifest URL.
func (s *Store) LastKnownGood(manifestURL string) (*GoodManifest, error) {
	data, err := s.kvs.Get(manifestKey(manifestURL))
	if err != nil {
		return nil, err
	}
	var good GoodManifest
	if err := json.Unmarshal(data, &good); err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrParse, err.Error())
	}
	return &good, nil
}

// SetLastKnownGood stores the last fully downloaded manifest+bundle
// pair for the given manifest URL.
func (s *Store) SetLastKnownGood(manifestURL string, good *GoodManifest) error {
	good.StoredAt = time.Now()
	data, err := json.Marshal(good)
	if err != nil {
		return err
	}
	return s.kvs.Set(manifestKey(manifestURL), data)
}

// normalizedExperienceKey normalizes the URL and derives the store key.
func normalizedExperienceKey(experienceURL string) (string, error) {
	normalized, err := manifest.NormalizeKey(experienceURL)
	if err != nil {
		return "", err
	}
	return experienceKey(normalized), nil
}
