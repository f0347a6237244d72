// Package updatepolicy decides which update candidate to launch, which
// in-flight download is worth finishing, and which stored candidates
// are safe to delete.
package updatepolicy

import (
	"time"

	"github.com/expo/exphost/internal/manifest"
	"github.com/expo/exphost/internal/model"
	"github.com/expo/exphost/internal/sdkver"
)

// Candidate is one update artifact competing for selection.
type Candidate struct {
	// Manifest is the candidate's manifest.
	Manifest *manifest.Manifest

	// Origin says where the candidate came from.
	Origin manifest.Origin

	// Verified says whether the candidate's manifest is verified.
	Verified bool
}

// Policy composes the three selection sub-policies. Construct with the
// host's supported-version set; a nil Policy is a programming error.
type Policy struct {
	// Supported is the host's supported-version set.
	Supported *sdkver.SupportedSet
}

// New creates a Policy for the given supported set.
func New(supported *sdkver.SupportedSet) *Policy {
	return &Policy{Supported: supported}
}

// compatible filters out candidates whose SDK version the host cannot
// run. Incompatible candidates are excluded from every sub-policy
// regardless of recency.
func (p *Policy) compatible(candidates []*Candidate) []*Candidate {
	out := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c != nil && c.Manifest != nil && p.Supported.Compatible(c.Manifest.SDKVersion) {
			out = append(out, c)
		}
	}
	return out
}

// originRank orders origins for launch selection: a fully downloaded
// remote update beats cache beats embedded.
func originRank(o manifest.Origin) int {
	switch o {
	case manifest.OriginRemote:
		return 2
	case manifest.OriginCached:
		return 1
	default:
		return 0
	}
}

// SelectLaunch picks the most appropriate compatible candidate to
// launch now, or nil when none is available. Ties between candidates
// of the same origin go to the newer manifest.
func (p *Policy) SelectLaunch(candidates []*Candidate) *Candidate {
	var best *Candidate
	for _, c := range p.compatible(candidates) {
		switch {
		case best == nil:
			best = c
		case originRank(c.Origin) > originRank(best.Origin):
			best = c
		case originRank(c.Origin) == originRank(best.Origin) &&
			manifest.Newer(best.Manifest, c.Manifest) == c.Manifest:
			best = c
		}
	}
	return best
}

// WaitBudget bounds how long launch waits for a remote candidate
// before falling back to the best already-available one. Precedence:
// explicit option, then the cached manifest's own hint, then the
// host default.
func (p *Policy) WaitBudget(cached *manifest.Manifest, config *model.HostConfig, option time.Duration) time.Duration {
	if option >= 0 {
		return option
	}
	if cached != nil && cached.FallbackToCacheTimeout >= 0 {
		return time.Duration(cached.FallbackToCacheTimeout) * time.Millisecond
	}
	return config.DefaultFallbackTimeout()
}

// ShouldKeepLoading decides whether an in-flight remote fetch is worth
// finishing for a future launch even though the current launch already
// proceeded on another candidate.
func (p *Policy) ShouldKeepLoading(inflight, launched *Candidate) bool {
	if inflight == nil || inflight.Manifest == nil {
		return false
	}
	if !p.Supported.Compatible(inflight.Manifest.SDKVersion) {
		return false
	}
	if launched == nil || launched.Manifest == nil {
		return true
	}
	if launched.Origin != manifest.OriginRemote {
		return true
	}
	return manifest.Newer(launched.Manifest, inflight.Manifest) == inflight.Manifest
}

// SelectReapable returns the previously downloaded candidates that are
// safe to delete: everything incompatible with the current supported
// set, plus cached candidates older than the currently launched one.
// The launched candidate itself is always preserved. Reaping runs off
// the launch critical path.
func (p *Policy) SelectReapable(candidates []*Candidate, current *Candidate) []*Candidate {
	out := []*Candidate{}
	for _, c := range candidates {
		if c == nil || c.Manifest == nil || c == current {
			continue
		}
		if !p.Supported.Compatible(c.Manifest.SDKVersion) {
			out = append(out, c)
			continue
		}
		if current != nil && c.Origin == manifest.OriginCached &&
			manifest.Newer(current.Manifest, c.Manifest) == current.Manifest {
			out = append(out, c)
		}
	}
	return out
}
