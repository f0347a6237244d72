// Package sdkver handles SDK version strings of the form
// MAJOR.MINOR.PATCH and the host's supported-version set.
package sdkver

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Unversioned is the sentinel version tag used by development builds
// of the framework. It is compatible with every host.
const Unversioned = "UNVERSIONED"

// ErrMalformed indicates that a version string could not be parsed.
var ErrMalformed = errors.New("sdkver: malformed version string")

// Version is a parsed MAJOR.MINOR.PATCH version. Absent components
// parse as zero.
type Version struct {
	Major int
	Minor int
	Patch int
}

// Parse parses a version string. Up to three dot-separated numeric
// components are accepted; absent components are zero.
func Parse(s string) (Version, error) {
	if s == "" {
		return Version{}, fmt.Errorf("%w: empty string", ErrMalformed)
	}
	fields := strings.Split(s, ".")
	if len(fields) > 3 {
		return Version{}, fmt.Errorf("%w: %s", ErrMalformed, s)
	}
	var out [3]int
	for idx, field := range fields {
		value, err := strconv.Atoi(field)
		if err != nil || value < 0 {
			return Version{}, fmt.Errorf("%w: %s", ErrMalformed, s)
		}
		out[idx] = value
	}
	return Version{Major: out[0], Minor: out[1], Patch: out[2]}, nil
}

// String implements fmt.Stringer.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Fold folds the version into a single integer giving each component a
// two-decimal-digit budget. Components >= 100 overflow their budget and
// yield undefined comparison results; we document rather than defend
// against this case.
func (v Version) Fold() int64 {
	return int64(v.Major)*10000 + int64(v.Minor)*100 + int64(v.Patch)
}

// AtLeast reports whether v is at least other.
func (v Version) AtLeast(other Version) bool {
	return v.Fold() >= other.Fold()
}

// SupportedSet is the set of SDK versions a host can run, plus an
// optional temporary override version. Populated once at startup and
// read-only afterwards, hence safe for concurrent use.
type SupportedSet struct {
	override string
	versions map[string]bool
}

// NewSupportedSet creates a SupportedSet from the given version
// strings and optional override (empty string means no override).
func NewSupportedSet(versions []string, override string) *SupportedSet {
	m := make(map[string]bool)
	for _, v := range versions {
		m[v] = true
	}
	return &SupportedSet{override: override, versions: m}
}

// Compatible reports whether a candidate declaring the given SDK
// version may run on this host. The Unversioned sentinel and the
// temporary override are always compatible.
func (ss *SupportedSet) Compatible(version string) bool {
	if version == Unversioned {
		return true
	}
	if ss.override != "" && version == ss.override {
		return true
	}
	return ss.versions[version]
}

// Versions returns the supported versions sorted lexicographically.
func (ss *SupportedSet) Versions() []string {
	out := make([]string, 0, len(ss.versions))
	for v := range ss.versions {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
