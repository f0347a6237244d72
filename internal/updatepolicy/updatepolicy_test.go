package updatepolicy

import (
	"testing"
	"time"

	"github.com/expo/exphost/internal/manifest"
	"github.com/expo/exphost/internal/model"
	"github.com/expo/exphost/internal/sdkver"
)

func newPolicy() *Policy {
	return New(sdkver.NewSupportedSet([]string{"30.0.0"}, ""))
}

func candidate(origin manifest.Origin, sdkVersion, commitTime string) *Candidate {
	return &Candidate{
		Manifest: &manifest.Manifest{
			SDKVersion: sdkVersion,
			CommitTime: commitTime,
			BundleURL:  "https://x/b",
		},
		Origin: origin,
	}
}

func TestSelectLaunch(t *testing.T) {
	p := newPolicy()

	t.Run("remote beats cached beats embedded", func(t *testing.T) {
		embedded := candidate(manifest.OriginEmbedded, "30.0.0", "2026-05-03T10:00:00Z")
		cached := candidate(manifest.OriginCached, "30.0.0", "2026-05-02T10:00:00Z")
		remote := candidate(manifest.OriginRemote, "30.0.0", "2026-05-01T10:00:00Z")
		got := p.SelectLaunch([]*Candidate{embedded, cached, remote})
		if got != remote {
			t.Fatal("expected the remote candidate")
		}
		got = p.SelectLaunch([]*Candidate{embedded, cached})
		if got != cached {
			t.Fatal("expected the cached candidate")
		}
	})

	t.Run("incompatible candidates are excluded regardless of recency", func(t *testing.T) {
		incompatible := candidate(manifest.OriginRemote, "99.0.0", "2026-09-01T10:00:00Z")
		embedded := candidate(manifest.OriginEmbedded, "30.0.0", "2020-01-01T10:00:00Z")
		got := p.SelectLaunch([]*Candidate{incompatible, embedded})
		if got != embedded {
			t.Fatal("expected the embedded candidate")
		}
	})

	t.Run("unversioned sentinel is compatible", func(t *testing.T) {
		dev := candidate(manifest.OriginRemote, sdkver.Unversioned, "")
		if p.SelectLaunch([]*Candidate{dev}) != dev {
			t.Fatal("expected the unversioned candidate")
		}
	})

	t.Run("same origin goes to the newer manifest", func(t *testing.T) {
		older := candidate(manifest.OriginCached, "30.0.0", "2026-05-01T10:00:00Z")
		newer := candidate(manifest.OriginCached, "30.0.0", "2026-05-02T10:00:00Z")
		if p.SelectLaunch([]*Candidate{older, newer}) != newer {
			t.Fatal("expected the newer candidate")
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		if p.SelectLaunch(nil) != nil {
			t.Fatal("expected nil")
		}
	})
}

func TestWaitBudget(t *testing.T) {
	p := newPolicy()
	hosted := &model.HostConfig{}
	standalone := &model.HostConfig{Standalone: true}

	t.Run("explicit option wins", func(t *testing.T) {
		cached := &manifest.Manifest{FallbackToCacheTimeout: 15000}
		if got := p.WaitBudget(cached, hosted, 5*time.Second); got != 5*time.Second {
			t.Fatal("unexpected budget", got)
		}
	})

	t.Run("manifest hint beats host default", func(t *testing.T) {
		cached := &manifest.Manifest{FallbackToCacheTimeout: 15000}
		if got := p.WaitBudget(cached, hosted, -1); got != 15*time.Second {
			t.Fatal("unexpected budget", got)
		}
	})

	t.Run("hosted default", func(t *testing.T) {
		cached := &manifest.Manifest{FallbackToCacheTimeout: -1}
		if got := p.WaitBudget(cached, hosted, -1); got != 60*time.Second {
			t.Fatal("unexpected budget", got)
		}
	})

	t.Run("standalone default is zero", func(t *testing.T) {
		if got := p.WaitBudget(nil, standalone, -1); got != 0 {
			t.Fatal("unexpected budget", got)
		}
	})
}

func TestShouldKeepLoading(t *testing.T) {
	p := newPolicy()

	t.Run("no launched candidate", func(t *testing.T) {
		inflight := candidate(manifest.OriginRemote, "30.0.0", "")
		if !p.ShouldKeepLoading(inflight, nil) {
			t.Fatal("expected to keep loading")
		}
	})

	t.Run("launched from cache", func(t *testing.T) {
		inflight := candidate(manifest.OriginRemote, "30.0.0", "2026-05-01T10:00:00Z")
		launched := candidate(manifest.OriginCached, "30.0.0", "2026-05-02T10:00:00Z")
		if !p.ShouldKeepLoading(inflight, launched) {
			t.Fatal("expected to keep loading")
		}
	})

	t.Run("incompatible in-flight", func(t *testing.T) {
		inflight := candidate(manifest.OriginRemote, "99.0.0", "")
		if p.ShouldKeepLoading(inflight, nil) {
			t.Fatal("expected to stop loading")
		}
	})

	t.Run("launched remote is already newer", func(t *testing.T) {
		inflight := candidate(manifest.OriginRemote, "30.0.0", "2026-05-01T10:00:00Z")
		launched := candidate(manifest.OriginRemote, "30.0.0", "2026-05-02T10:00:00Z")
		if p.ShouldKeepLoading(inflight, launched) {
			t.Fatal("expected to stop loading")
		}
	})
}

func TestSelectReapable(t *testing.T) {
	p := newPolicy()
	current := candidate(manifest.OriginCached, "30.0.0", "2026-05-02T10:00:00Z")
	incompatible := candidate(manifest.OriginCached, "12.0.0", "2026-05-03T10:00:00Z")
	stale := candidate(manifest.OriginCached, "30.0.0", "2026-05-01T10:00:00Z")
	fresh := candidate(manifest.OriginCached, "30.0.0", "2026-05-09T10:00:00Z")

	got := p.SelectReapable([]*Candidate{current, incompatible, stale, fresh}, current)
	if len(got) != 2 {
		t.Fatal("unexpected reap set size", len(got))
	}
	for _, c := range got {
		if c == current {
			t.Fatal("must never reap the launched candidate")
		}
		if c == fresh {
			t.Fatal("must not reap a newer compatible candidate")
		}
	}
}
