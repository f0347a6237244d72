// Package fetcher obtains manifests for experience URLs, either over
// the network or from the durable cache.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/expo/exphost/internal/httpclientx"
	"github.com/expo/exphost/internal/manifest"
	"github.com/expo/exphost/internal/manifeststore"
	"github.com/expo/exphost/internal/model"
	"github.com/expo/exphost/internal/sdkver"
	"github.com/google/uuid"
)

// ErrNotCacheable indicates that the experience must never be served
// from cache (development hosts). It is an expected outcome of
// FetchCached rather than a failure.
var ErrNotCacheable = errors.New("fetcher: experience is not cacheable")

// ErrNoCompatibleManifest indicates that a manifest array contained no
// entry declaring a supported SDK version.
var ErrNoCompatibleManifest = fmt.Errorf("%w: no compatible manifest", model.ErrIncompatibleVersion)

// Fetcher fetches manifests. The zero value is invalid; initialize all
// the MANDATORY fields.
type Fetcher struct {
	// Config is the MANDATORY host configuration.
	Config *model.HostConfig

	// HTTP is the MANDATORY HTTP configuration.
	HTTP *httpclientx.Config

	// Store is the MANDATORY manifest store.
	Store *manifeststore.Store

	// Supported is the MANDATORY supported-version set.
	Supported *sdkver.SupportedSet

	// Embedded is the OPTIONAL manifest bundled at build time.
	Embedded *manifest.Manifest

	// Logger is the OPTIONAL logger.
	Logger model.Logger
}

// Options contains options for FetchRemote.
type Options struct {
	// ForceNetwork bypasses the HTTP cache layer entirely.
	ForceNetwork bool
}

// envelope is the signed wire shape of a manifest response.
type envelope struct {
	ManifestString string `json:"manifestString"`
	Signature      string `json:"signature"`
}

// FetchRemote performs the network round trip obtaining a manifest for
// the given experience URL. The response body may be a single manifest
// object, a signed envelope, or an array of candidate manifests, in
// which case the first compatible entry wins.
func (f *Fetcher) FetchRemote(ctx context.Context, experienceURL string, opts *Options) (*manifest.Manifest, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := model.ValidLoggerOrDefault(f.Logger)
	fetchURL, err := manifest.CanonicalFetchURL(experienceURL)
	if err != nil {
		return nil, err
	}

	reqOpts := &httpclientx.Options{
		Headers:   f.identificationHeaders(),
		CacheMode: httpclientx.CacheDefault,
	}
	if opts.ForceNetwork {
		reqOpts.CacheMode = httpclientx.CacheBypass
	}

	// timing telemetry: a logging concern, not a correctness one
	eventID := uuid.NewString()
	start := time.Now()
	logger.Debugf("fetcher: %s: fetch %s start", eventID, fetchURL)
	rawrespbody, err := httpclientx.GetRaw(ctx, f.HTTP, fetchURL, reqOpts)
	logger.Debugf("fetcher: %s: fetch stop after %v: %s",
		eventID, time.Since(start), errorToStringOrOK(err))
	if err != nil {
		return nil, err
	}

	return f.parseResponse(rawrespbody)
}

// FetchCached returns a previously downloaded manifest for the given
// experience URL without touching the network. Development hosts get
// ErrNotCacheable; a plain cache miss surfaces the underlying store
// error. When both an embedded manifest and a cache hit exist the
// newer of the two wins.
func (f *Fetcher) FetchCached(ctx context.Context, experienceURL string) (*manifest.Manifest, error) {
	fetchURL, err := manifest.CanonicalFetchURL(experienceURL)
	if err != nil {
		return nil, err
	}
	parsed, err := url.Parse(fetchURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrParse, err.Error())
	}
	if manifest.IsDevHost(parsed.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrNotCacheable, parsed.Hostname())
	}

	cached, err := f.lookupCached(ctx, fetchURL)
	if err != nil {
		if f.Embedded != nil {
			return f.Embedded, nil
		}
		return nil, err
	}
	if f.Embedded != nil {
		return manifest.Newer(cached, f.Embedded), nil
	}
	return cached, nil
}

// lookupCached consults the durable last-known-good record first and
// the network-layer response cache second.
func (f *Fetcher) lookupCached(ctx context.Context, fetchURL string) (*manifest.Manifest, error) {
	good, err := f.Store.LastKnownGood(fetchURL)
	if err == nil {
		m, err := manifest.Parse(good.ManifestJSON)
		if err != nil {
			return nil, err
		}
		m.Signature = good.Signature
		return m.WithVerified(true).WithLoadedFromCache(), nil
	}

	reqOpts := &httpclientx.Options{
		Headers:   f.identificationHeaders(),
		CacheMode: httpclientx.CacheOnly,
	}
	rawrespbody, err := httpclientx.GetRaw(ctx, f.HTTP, fetchURL, reqOpts)
	if err != nil {
		return nil, err
	}
	m, err := f.parseResponse(rawrespbody)
	if err != nil {
		return nil, err
	}
	return m.WithLoadedFromCache(), nil
}

// parseResponse parses a manifest response body in any of its
// accepted shapes.
func (f *Fetcher) parseResponse(rawrespbody []byte) (*manifest.Manifest, error) {
	trimmed := bytes.TrimSpace(rawrespbody)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		return f.selectFromArray(trimmed)
	}
	return parseMaybeEnvelope(trimmed)
}

// selectFromArray picks the first array entry declaring a supported
// SDK version.
func (f *Fetcher) selectFromArray(data []byte) (*manifest.Manifest, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrParse, err.Error())
	}
	for _, entry := range entries {
		m, err := parseMaybeEnvelope(entry)
		if err != nil {
			continue
		}
		if f.Supported.Compatible(m.SDKVersion) {
			return m, nil
		}
	}
	return nil, ErrNoCompatibleManifest
}

// parseMaybeEnvelope parses either a signed envelope or a bare
// manifest object.
func parseMaybeEnvelope(data []byte) (*manifest.Manifest, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err == nil && env.ManifestString != "" {
		m, err := manifest.Parse([]byte(env.ManifestString))
		if err != nil {
			return nil, err
		}
		m.Signature = env.Signature
		return m, nil
	}
	return manifest.Parse(data)
}

// identificationHeaders builds the headers attached to every manifest
// request: protocol versions, platform, and session token if present.
func (f *Fetcher) identificationHeaders() http.Header {
	headers := http.Header{}
	headers.Set(model.HTTPHeaderExponentSDKVersion, strings.Join(f.Supported.Versions(), ","))
	headers.Set(model.HTTPHeaderExponentPlatform, f.Config.Platform)
	headers.Set(model.HTTPHeaderExponentAcceptSignature, "true")
	headers.Set(model.HTTPHeaderExpoJSONError, "true")
	headers.Set("Accept", "application/expo+json,application/json")
	if f.Config.SessionToken != "" {
		headers.Set(model.HTTPHeaderExpoSession, f.Config.SessionToken)
	}
	return headers
}

// errorToStringOrOK stringifies an error for telemetry logging.
func errorToStringOrOK(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}
