// Package apploader drives the resolution of an experience URL into a
// launched manifest and bundle.
//
// Resolution is a small state machine running on a single event-loop
// goroutine. Asynchronous work (remote fetch, verification, bundle
// downloads, the fallback timer) posts closures back to the loop, so
// all state transitions are serialized and need no locking. The loop
// exits when no operation is outstanding.
//
// Exactly one of OnManifestCompleted+OnBundleCompleted or OnError fires
// per resolution, with a single documented exception: a remote manifest
// declaring an unsupported SDK version is fatal even when a cached
// candidate already resolved.
package apploader

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/expo/exphost/internal/bundle"
	"github.com/expo/exphost/internal/fetcher"
	"github.com/expo/exphost/internal/manifest"
	"github.com/expo/exphost/internal/manifeststore"
	"github.com/expo/exphost/internal/model"
	"github.com/expo/exphost/internal/runtimex"
	"github.com/expo/exphost/internal/sigverify"
	"github.com/expo/exphost/internal/updatepolicy"
)

// Error is a resolution failure carrying both a message suitable for
// end users and the developer-facing detail.
type Error struct {
	// UserMessage is the message to show to the user.
	UserMessage string

	// DevMessage is the developer-facing detail.
	DevMessage string

	// Cause is the underlying error.
	Cause error
}

// Error implements error.
func (e *Error) Error() string {
	return e.DevMessage
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Callbacks receive resolution progress. All callbacks run on the
// loader's event loop, so they must not block and must not call back
// into the loader. Nil callbacks are skipped.
type Callbacks struct {
	// OnOptimisticManifest fires when a remote manifest has been parsed
	// but not yet verified, allowing the UI to show experience metadata
	// early. It may not fire at all.
	OnOptimisticManifest func(m *manifest.Manifest)

	// OnManifestCompleted fires exactly once when a manifest has been
	// selected for launch.
	OnManifestCompleted func(m *manifest.Manifest)

	// OnBundleCompleted fires exactly once when the launched manifest's
	// bundle is available locally.
	OnBundleCompleted func(m *manifest.Manifest, bundlePath string)

	// OnBackgroundUpdate fires when a newer remote update finished
	// downloading after the launch already proceeded on an older
	// candidate. The update will be used by the next launch.
	OnBackgroundUpdate func(m *manifest.Manifest, bundlePath string)

	// OnError fires when resolution fails.
	OnError func(err *Error)
}

// Options modify a single resolution.
type Options struct {
	// UseCacheOnly restricts resolution to locally available
	// candidates and never touches the network.
	UseCacheOnly bool

	// ForceNetworkOnRetry bypasses HTTP caches for the bundle download
	// when the previous launch of this experience failed.
	ForceNetworkOnRetry bool

	// FallbackTimeout bounds how long resolution waits for a remote
	// manifest before launching the best local candidate. Negative
	// means unset, deferring to the manifest hint and the host default.
	FallbackTimeout time.Duration

	// CheckAutomatically overrides the manifest's own update-check
	// policy when non-nil.
	CheckAutomatically *manifest.CheckAutomatically
}

// Loader resolves one experience URL. A Loader is single-use: create
// one per resolution and call Start at most once. The zero value is
// invalid; initialize the MANDATORY fields.
type Loader struct {
	// Config is the MANDATORY host configuration.
	Config *model.HostConfig

	// Fetcher is the MANDATORY manifest fetcher.
	Fetcher *fetcher.Fetcher

	// Verifier is the MANDATORY signature verifier.
	Verifier *sigverify.Verifier

	// Policy is the MANDATORY update selection policy.
	Policy *updatepolicy.Policy

	// Bundles is the MANDATORY bundle loader.
	Bundles *bundle.Loader

	// Store is the MANDATORY manifest store.
	Store *manifeststore.Store

	// History is the OPTIONAL launch history database.
	History model.Database

	// Callbacks are the OPTIONAL progress callbacks.
	Callbacks Callbacks

	// Options are the per-resolution options.
	Options Options

	// Logger is the OPTIONAL logger.
	Logger model.Logger

	// started guards against Start being called twice.
	started atomic.Bool

	// events carries closures to the event loop.
	events chan func()

	// done is closed when the event loop exits.
	done chan struct{}

	// Everything below is owned by the event-loop goroutine.

	ctx           context.Context
	experienceURL string
	pending       int
	resolved      bool
	failed        bool
	hadError      bool
	cached        *updatepolicy.Candidate
	launched      *updatepolicy.Candidate
	seen          []*updatepolicy.Candidate
	timer         *time.Timer
}

// Start begins resolving the given experience URL. It returns
// immediately; progress is reported through the callbacks and Wait
// blocks until resolution has fully finished, background work included.
func (l *Loader) Start(ctx context.Context, experienceURL string) {
	runtimex.Assert(l.started.CompareAndSwap(false, true), "apploader: Start called twice")
	l.ctx = ctx
	l.experienceURL = experienceURL
	l.events = make(chan func())
	l.done = make(chan struct{})
	l.pending = 1
	go l.run(l.begin)
}

// Wait blocks until the event loop has exited.
func (l *Loader) Wait() {
	<-l.done
}

// run is the event loop. The initial event is accounted for in pending
// by Start; every async operation spawned from the loop increments
// pending and posts back exactly one event.
func (l *Loader) run(initial func()) {
	defer close(l.done)
	l.pending--
	initial()
	for l.pending > 0 {
		ev := <-l.events
		l.pending--
		ev()
	}
}

// post delivers an event to the loop from another goroutine.
func (l *Loader) post(ev func()) {
	select {
	case l.events <- ev:
	case <-l.done:
	}
}

// begin is the first state: consult the durable cache and decide
// whether to launch immediately, wait for the network, or both.
func (l *Loader) begin() {
	logger := model.ValidLoggerOrDefault(l.Logger)

	if l.Config.UpdatesDisabled {
		if l.Fetcher.Embedded == nil {
			l.fail(&Error{
				UserMessage: "This app cannot load remote updates and ships without an embedded one.",
				DevMessage:  "apploader: updates disabled and no embedded manifest",
				Cause:       model.ErrFetch,
			})
			return
		}
		embedded := l.Fetcher.Embedded.WithVerified(true)
		l.resolve(l.candidate(embedded, manifest.OriginEmbedded))
		return
	}

	l.hadError = l.lastLoadHadError()

	cached, err := l.Fetcher.FetchCached(l.ctx, l.experienceURL)
	if err != nil {
		if errors.Is(err, fetcher.ErrNotCacheable) {
			logger.Debugf("apploader: %s: development host, skipping caches", l.experienceURL)
			l.startRemoteFetch()
			return
		}
		if l.Options.UseCacheOnly {
			l.fail(&Error{
				UserMessage: "This experience is not available offline.",
				DevMessage:  fmt.Sprintf("apploader: cache-only load with no cached manifest: %s", err.Error()),
				Cause:       err,
			})
			return
		}
		logger.Debugf("apploader: %s: no cached manifest: %s", l.experienceURL, err.Error())
		l.startRemoteFetch()
		return
	}

	origin := manifest.OriginEmbedded
	if cached.LoadedFromCache {
		origin = manifest.OriginCached
	}
	l.cached = l.candidate(cached, origin)

	if l.Options.UseCacheOnly {
		l.resolve(l.cached)
		return
	}

	check := cached.CheckAutomatically
	if l.Options.CheckAutomatically != nil {
		check = *l.Options.CheckAutomatically
	}
	if check == manifest.CheckOnErrorRecovery && !l.hadError {
		logger.Debugf("apploader: %s: %s policy and no prior error, using cache", l.experienceURL, check)
		l.resolve(l.cached)
		return
	}

	budget := l.Policy.WaitBudget(cached, l.Config, l.Options.FallbackTimeout)
	if budget <= 0 {
		// launch from cache now, keep fetching for the next launch
		l.resolve(l.cached)
		l.startRemoteFetch()
		return
	}
	l.startFallbackTimer(budget)
	l.startRemoteFetch()
}

// candidate wraps a manifest into a policy candidate and records it
// for the final reaping pass.
func (l *Loader) candidate(m *manifest.Manifest, origin manifest.Origin) *updatepolicy.Candidate {
	cand := &updatepolicy.Candidate{Manifest: m, Origin: origin, Verified: m.IsVerified}
	l.seen = append(l.seen, cand)
	return cand
}

// lastLoadHadError reads the previous launch outcome for this
// experience from the durable store.
func (l *Loader) lastLoadHadError() bool {
	rec, err := l.Store.ExperienceRecord(l.experienceURL)
	if err != nil {
		return false
	}
	return rec.LastLoadHadError
}

// startFallbackTimer arms the timer bounding the wait for the remote
// manifest.
func (l *Loader) startFallbackTimer(budget time.Duration) {
	l.pending++
	l.timer = time.AfterFunc(budget, func() {
		l.post(l.onFallbackTimer)
	})
}

// cancelTimer disarms the fallback timer. When Stop fails the timer
// already fired and its event is accounted for in pending.
func (l *Loader) cancelTimer() {
	if l.timer != nil && l.timer.Stop() {
		l.pending--
	}
	l.timer = nil
}

// onFallbackTimer launches the best local candidate when the remote
// fetch has not produced a manifest within the wait budget.
func (l *Loader) onFallbackTimer() {
	if l.resolved || l.failed {
		return
	}
	if l.cached != nil {
		model.ValidLoggerOrDefault(l.Logger).Infof(
			"apploader: %s: wait budget exhausted, launching local candidate", l.experienceURL)
		l.resolve(l.cached)
	}
	// with nothing to fall back to, keep waiting for the network
}

// startRemoteFetch fetches the manifest over the network.
func (l *Loader) startRemoteFetch() {
	l.pending++
	go func() {
		m, err := l.Fetcher.FetchRemote(l.ctx, l.experienceURL, nil)
		l.post(func() { l.onRemoteManifest(m, err) })
	}()
}

// onRemoteManifest handles the remote fetch outcome.
func (l *Loader) onRemoteManifest(m *manifest.Manifest, err error) {
	logger := model.ValidLoggerOrDefault(l.Logger)
	if l.failed {
		return
	}
	if err != nil {
		if errors.Is(err, model.ErrIncompatibleVersion) {
			l.failIncompatible(err)
			return
		}
		if l.resolved {
			logger.Warnf("apploader: %s: remote fetch failed after launch: %s", l.experienceURL, err.Error())
			return
		}
		if l.cached != nil {
			logger.Warnf("apploader: %s: remote fetch failed, falling back to local candidate: %s",
				l.experienceURL, err.Error())
			l.resolve(l.cached)
			return
		}
		l.fail(&Error{
			UserMessage: "Could not load the experience. Make sure you are connected to the internet.",
			DevMessage:  fmt.Sprintf("apploader: remote fetch failed with no local candidate: %s", err.Error()),
			Cause:       err,
		})
		return
	}
	if !l.Policy.Supported.Compatible(m.SDKVersion) {
		l.failIncompatible(fmt.Errorf(
			"%w: manifest declares SDK %s", model.ErrIncompatibleVersion, m.SDKVersion))
		return
	}
	if !l.resolved {
		l.emitOptimisticManifest(m)
	}
	l.pending++
	go func() {
		result := l.Verifier.Verify(l.ctx, m)
		l.post(func() { l.onVerified(m, result) })
	}()
}

// failIncompatible reports an unsupported SDK version. This is fatal
// regardless of resolution state so that the user learns the app needs
// an upgrade instead of silently running stale code forever.
func (l *Loader) failIncompatible(err error) {
	l.fail(&Error{
		UserMessage: "This experience requires a newer version of the app. Please update and try again.",
		DevMessage:  fmt.Sprintf("apploader: %s", err.Error()),
		Cause:       err,
	})
}

// onVerified handles the verification outcome for a remote manifest.
func (l *Loader) onVerified(m *manifest.Manifest, result sigverify.Result) {
	logger := model.ValidLoggerOrDefault(l.Logger)
	if l.failed {
		return
	}
	if result.Status == sigverify.Rejected {
		// not fatal: resolution continues with the manifest unverified
		logger.Warnf("apploader: %s: manifest verification rejected: %s",
			l.experienceURL, result.Cause.Error())
	}
	final := m.WithVerified(result.Status == sigverify.Verified)
	l.upsertExperience(final)
	cand := l.candidate(final, manifest.OriginRemote)
	if !l.resolved {
		l.resolve(cand)
		return
	}
	if l.Policy.ShouldKeepLoading(cand, l.launched) {
		logger.Infof("apploader: %s: downloading newer update in the background", l.experienceURL)
		l.startBundleLoad(cand, true)
		return
	}
	logger.Debugf("apploader: %s: discarding late remote manifest", l.experienceURL)
}

// upsertExperience records the latest manifest for this experience.
func (l *Loader) upsertExperience(m *manifest.Manifest) {
	logger := model.ValidLoggerOrDefault(l.Logger)
	rec, err := l.Store.ExperienceRecord(l.experienceURL)
	if err != nil {
		rec = &manifeststore.ExperienceRecord{ExperienceURL: l.experienceURL}
	}
	if manifestURL, err := manifest.CanonicalFetchURL(l.experienceURL); err == nil {
		rec.ManifestURL = manifestURL
	}
	rec.LastKnownManifest = m.Raw
	rec.BundleURL = m.BundleURL
	if err := l.Store.UpsertExperience(rec); err != nil {
		logger.Warnf("apploader: %s: cannot persist experience record: %s", l.experienceURL, err.Error())
	}
}

// resolve selects the candidate to launch. Only the first call has any
// effect.
func (l *Loader) resolve(cand *updatepolicy.Candidate) {
	if l.resolved || l.failed {
		return
	}
	l.resolved = true
	l.launched = cand
	l.cancelTimer()
	l.emitManifestCompleted(cand.Manifest)
	l.startBundleLoad(cand, false)
}

// startBundleLoad downloads the candidate's bundle.
func (l *Loader) startBundleLoad(cand *updatepolicy.Candidate, background bool) {
	forceNetwork := !background && l.Options.ForceNetworkOnRetry && l.hadError
	l.pending++
	go func() {
		path, err := l.Bundles.Load(l.ctx, cand.Manifest, forceNetwork)
		l.post(func() { l.onBundle(cand, path, err, background) })
	}()
}

// onBundle handles a bundle download outcome for both the launched
// candidate and background updates.
func (l *Loader) onBundle(cand *updatepolicy.Candidate, path string, err error, background bool) {
	logger := model.ValidLoggerOrDefault(l.Logger)
	if l.failed {
		return
	}
	if err != nil {
		if background {
			logger.Warnf("apploader: %s: background bundle download failed: %s",
				l.experienceURL, err.Error())
			return
		}
		if suberr := l.Store.SetLastLoadHadError(l.experienceURL, true); suberr != nil {
			logger.Warnf("apploader: %s: cannot record launch error: %s", l.experienceURL, suberr.Error())
		}
		l.recordLaunch(cand, err.Error())
		l.fail(&Error{
			UserMessage: "Could not download the experience. Make sure you are connected to the internet.",
			DevMessage:  fmt.Sprintf("apploader: bundle download failed: %s", err.Error()),
			Cause:       err,
		})
		return
	}

	if cand.Manifest.IsVerified {
		l.storeLastKnownGood(cand.Manifest, path)
	}
	if background {
		l.emitBackgroundUpdate(cand.Manifest, path)
		return
	}
	if suberr := l.Store.SetLastLoadHadError(l.experienceURL, false); suberr != nil {
		logger.Warnf("apploader: %s: cannot clear launch error: %s", l.experienceURL, suberr.Error())
	}
	l.recordLaunch(cand, "")
	l.emitBundleCompleted(cand.Manifest, path)
	l.startReaping(cand)
}

// storeLastKnownGood persists a verified manifest+bundle pair so that
// future launches can resolve without the network.
func (l *Loader) storeLastKnownGood(m *manifest.Manifest, bundlePath string) {
	logger := model.ValidLoggerOrDefault(l.Logger)
	manifestURL, err := manifest.CanonicalFetchURL(l.experienceURL)
	if err != nil {
		return
	}
	err = l.Store.SetLastKnownGood(manifestURL, &manifeststore.GoodManifest{
		ManifestJSON: m.Raw,
		Signature:    m.Signature,
		BundleURL:    m.BundleURL,
		BundlePath:   bundlePath,
	})
	if err != nil {
		logger.Warnf("apploader: %s: cannot persist last known good: %s", l.experienceURL, err.Error())
	}
}

// recordLaunch appends the launch outcome to the history database.
func (l *Loader) recordLaunch(cand *updatepolicy.Candidate, errstr string) {
	if l.History == nil {
		return
	}
	err := l.History.AddLaunch(&model.LaunchRecord{
		ExperienceURL: l.experienceURL,
		ManifestName:  cand.Manifest.Name,
		SDKVersion:    cand.Manifest.SDKVersion,
		Origin:        cand.Origin.String(),
		Verified:      cand.Manifest.IsVerified,
		Error:         errstr,
	})
	if err != nil {
		model.ValidLoggerOrDefault(l.Logger).Warnf(
			"apploader: %s: cannot record launch: %s", l.experienceURL, err.Error())
	}
}

// startReaping deletes superseded candidates off the launch critical
// path.
func (l *Loader) startReaping(current *updatepolicy.Candidate) {
	reapable := l.Policy.SelectReapable(l.seen, current)
	if len(reapable) <= 0 {
		return
	}
	logger := model.ValidLoggerOrDefault(l.Logger)
	l.pending++
	go func() {
		for _, c := range reapable {
			if err := l.Bundles.Evict(c.Manifest); err != nil {
				logger.Warnf("apploader: %s: cannot evict stale bundle: %s", l.experienceURL, err.Error())
			}
		}
		l.post(func() {})
	}()
}

// fail reports a resolution failure. Only the first call has any
// effect.
func (l *Loader) fail(err *Error) {
	if l.failed {
		return
	}
	l.failed = true
	l.cancelTimer()
	model.ValidLoggerOrDefault(l.Logger).Warnf("apploader: %s", err.DevMessage)
	l.emitError(err)
}

func (l *Loader) emitOptimisticManifest(m *manifest.Manifest) {
	if l.Callbacks.OnOptimisticManifest != nil {
		l.Callbacks.OnOptimisticManifest(m)
	}
}

func (l *Loader) emitManifestCompleted(m *manifest.Manifest) {
	if l.Callbacks.OnManifestCompleted != nil {
		l.Callbacks.OnManifestCompleted(m)
	}
}

func (l *Loader) emitBundleCompleted(m *manifest.Manifest, bundlePath string) {
	if l.Callbacks.OnBundleCompleted != nil {
		l.Callbacks.OnBundleCompleted(m, bundlePath)
	}
}

func (l *Loader) emitBackgroundUpdate(m *manifest.Manifest, bundlePath string) {
	if l.Callbacks.OnBackgroundUpdate != nil {
		l.Callbacks.OnBackgroundUpdate(m, bundlePath)
	}
}

func (l *Loader) emitError(err *Error) {
	if l.Callbacks.OnError != nil {
		l.Callbacks.OnError(err)
	}
}
