// Package manifest contains the manifest data model, parsing, URL
// canonicalization, and recency comparison.
package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/expo/exphost/internal/model"
)

// CheckAutomatically is a manifest's update-check policy.
type CheckAutomatically int

const (
	// CheckOnLoad asks the host to check for updates on every load.
	CheckOnLoad = CheckAutomatically(iota)

	// CheckOnErrorRecovery asks the host to check for updates only
	// after a failed launch.
	CheckOnErrorRecovery
)

// String implements fmt.Stringer.
func (ca CheckAutomatically) String() string {
	switch ca {
	case CheckOnErrorRecovery:
		return "ON_ERROR_RECOVERY"
	default:
		return "ON_LOAD"
	}
}

// Origin says where an update candidate came from.
type Origin int

const (
	// OriginEmbedded is a manifest bundled at build time.
	OriginEmbedded = Origin(iota)

	// OriginCached is a previously verified, persisted manifest.
	OriginCached

	// OriginRemote is a freshly fetched manifest.
	OriginRemote
)

// String implements fmt.Stringer.
func (o Origin) String() string {
	switch o {
	case OriginCached:
		return "cached"
	case OriginRemote:
		return "remote"
	default:
		return "embedded"
	}
}

// Manifest is an immutable document describing one experience. Never
// mutate a Manifest in place: supersession creates a new value.
type Manifest struct {
	// ID is the experience identifier (e.g., "@user/slug").
	ID string

	// Name is the display name.
	Name string

	// SDKVersion is the framework version the experience targets.
	SDKVersion string

	// BundleURL is where the executable bundle lives. Always present
	// in a valid manifest.
	BundleURL string

	// Signature is the base64 RSA signature of Raw, when present.
	Signature string

	// CommitTime is the ISO-8601 commit timestamp, when present.
	CommitTime string

	// PublishedTime is the ISO-8601 publish timestamp, when present.
	PublishedTime string

	// CheckAutomatically is the manifest's update-check policy.
	CheckAutomatically CheckAutomatically

	// FallbackToCacheTimeout is the manifest's own fallback timeout
	// hint in milliseconds; negative when unset.
	FallbackToCacheTimeout int

	// IsVerified says whether this manifest's authenticity has been
	// established. Within one resolution the flag may go from false to
	// true after online verification, never the other way.
	IsVerified bool

	// LoadedFromCache says whether this manifest was served from a
	// cache rather than the network.
	LoadedFromCache bool

	// AnonymousScope says whether the experience belongs to the
	// anonymous scope, which is trusted without verification.
	AnonymousScope bool

	// Raw is the exact manifest body the signature covers.
	Raw json.RawMessage
}

// manifestBody is the JSON wire shape of a manifest.
type manifestBody struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	SDKVersion    string `json:"sdkVersion"`
	BundleURL     string `json:"bundleUrl"`
	CommitTime    string `json:"commitTime"`
	PublishedTime string `json:"publishedTime"`
	Updates       struct {
		CheckAutomatically     string `json:"checkAutomatically"`
		FallbackToCacheTimeout *int   `json:"fallbackToCacheTimeout"`
	} `json:"updates"`
}

// Parse parses a manifest body. Malformed JSON or a missing bundle URL
// yield an error matching model.ErrParse.
func Parse(data []byte) (*Manifest, error) {
	var body manifestBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrParse, err.Error())
	}
	if body.BundleURL == "" {
		return nil, fmt.Errorf("%w: manifest has no bundleUrl", model.ErrParse)
	}
	if body.SDKVersion == "" {
		return nil, fmt.Errorf("%w: manifest has no sdkVersion", model.ErrParse)
	}
	m := &Manifest{
		ID:                     body.ID,
		Name:                   body.Name,
		SDKVersion:             body.SDKVersion,
		BundleURL:              body.BundleURL,
		CommitTime:             body.CommitTime,
		PublishedTime:          body.PublishedTime,
		FallbackToCacheTimeout: -1,
		AnonymousScope:         strings.HasPrefix(body.ID, "@anonymous/"),
		Raw:                    append(json.RawMessage{}, data...),
	}
	if body.Updates.CheckAutomatically == "ON_ERROR_RECOVERY" {
		m.CheckAutomatically = CheckOnErrorRecovery
	}
	if body.Updates.FallbackToCacheTimeout != nil {
		m.FallbackToCacheTimeout = *body.Updates.FallbackToCacheTimeout
	}
	return m, nil
}

// WithVerified returns a copy of the manifest with the given
// verification status. The flag is monotonic within a resolution:
// a verified manifest is never demoted.
func (m *Manifest) WithVerified(verified bool) *Manifest {
	out := *m
	out.IsVerified = m.IsVerified || verified
	return &out
}

// WithLoadedFromCache returns a copy flagged as served from cache.
func (m *Manifest) WithLoadedFromCache() *Manifest {
	out := *m
	out.LoadedFromCache = true
	return &out
}
