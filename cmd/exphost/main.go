// Command exphost resolves an experience URL into a manifest and a
// locally cached bundle, then announces the launch through the
// version-dispatch layer.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
	"github.com/expo/exphost/internal/apploader"
	"github.com/expo/exphost/internal/bundle"
	"github.com/expo/exphost/internal/bundlecache"
	"github.com/expo/exphost/internal/dispatch"
	"github.com/expo/exphost/internal/fetcher"
	"github.com/expo/exphost/internal/history"
	"github.com/expo/exphost/internal/httpclientx"
	"github.com/expo/exphost/internal/kvstore"
	"github.com/expo/exphost/internal/manifest"
	"github.com/expo/exphost/internal/manifeststore"
	"github.com/expo/exphost/internal/model"
	"github.com/expo/exphost/internal/sdkver"
	"github.com/expo/exphost/internal/sigverify"
	"github.com/expo/exphost/internal/updatepolicy"
	"github.com/expo/exphost/internal/version"
	"github.com/pborman/getopt/v2"
)

var startTime = time.Now()

type logHandler struct {
	io.Writer
}

func (h *logHandler) HandleLog(e *log.Entry) (err error) {
	s := fmt.Sprintf("[%14.6f] <%s> %s", time.Since(startTime).Seconds(), e.Level, e.Message)
	if len(e.Fields) > 0 {
		s += fmt.Sprintf(": %+v", e.Fields)
	}
	s += "\n"
	_, err = h.Writer.Write([]byte(s))
	return
}

// supportedSDKVersions enumerates the framework copies linked into
// this build.
var supportedSDKVersions = []string{"30.0.0"}

var (
	experienceURL = getopt.StringLong("url", 'u', "", "experience URL to load")
	cacheOnly     = getopt.BoolLong("cache-only", 0, "never touch the network")
	timeoutMs     = getopt.Int64Long("timeout", 't', -1, "fallback-to-cache timeout in milliseconds")
	homeDir       = getopt.StringLong("home", 0, "", "force specific home directory")
	verbose       = getopt.BoolLong("verbose", 'v', "enable verbose logging")
)

func fatalOnError(logger model.Logger, err error, message string) {
	if err != nil {
		logger.Warnf("%s: %s", message, err.Error())
		os.Exit(1)
	}
}

// exphostHomeDir returns the home directory honoring the --home flag.
func exphostHomeDir() (string, error) {
	if *homeDir != "" {
		return *homeDir, nil
	}
	base, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, ".exphost"), nil
}

// frameworkShim stands in for one installed framework copy. The real
// host registers root-view construction, lifecycle, and deep-link
// delivery for each version the same way.
type frameworkShim struct {
	logger  model.Logger
	version string
}

// Launch logs that the bundle for the named experience is runnable.
func (s *frameworkShim) Launch(name, bundlePath string) error {
	s.logger.Infof("launching %s with framework %s: %s", name, s.version, bundlePath)
	return nil
}

// Pause suspends the running experience.
func (s *frameworkShim) Pause() {
	s.logger.Debugf("framework %s: pause", s.version)
}

// Resume resumes a paused experience.
func (s *frameworkShim) Resume() {
	s.logger.Debugf("framework %s: resume", s.version)
}

// Destroy tears down the framework instance.
func (s *frameworkShim) Destroy() {
	s.logger.Debugf("framework %s: destroy", s.version)
}

// OpenDeepLink delivers a deep link to the running experience.
func (s *frameworkShim) OpenDeepLink(url string) error {
	s.logger.Infof("framework %s: open deep link %s", s.version, url)
	return nil
}

// newDispatchRegistry installs one capability set per supported SDK
// version plus the unversioned development build.
func newDispatchRegistry(logger model.Logger) *dispatch.Registry {
	registry := dispatch.NewRegistry(logger)
	for _, v := range append([]string{sdkver.Unversioned}, supportedSDKVersions...) {
		version := v
		registry.Register(version, "host.ExperienceActivity", &dispatch.Registration{
			Value: &frameworkShim{logger: logger, version: version},
			Constructors: []any{
				func() *frameworkShim {
					return &frameworkShim{logger: logger, version: version}
				},
			},
		})
	}
	return registry
}

// announceLaunch resolves the framework surface for the manifest's SDK
// version and drives it through a minimal lifecycle.
func announceLaunch(registry *dispatch.Registry, logger model.Logger, m *manifest.Manifest, bundlePath string) {
	handle, err := registry.Resolve(m.SDKVersion, "host.ExperienceActivity")
	if err != nil {
		logger.Warnf("exphost: %s", err.Error())
		return
	}
	defer handle.Invalidate()
	if _, err := dispatch.Construct(handle); err != nil {
		logger.Warnf("exphost: %s", err.Error())
		return
	}
	if _, err := dispatch.Invoke(handle, "Launch", m.Name, bundlePath); err != nil {
		logger.Warnf("exphost: %s", err.Error())
		return
	}
	if _, err := dispatch.Invoke(handle, "Destroy"); err != nil {
		logger.Warnf("exphost: %s", err.Error())
	}
}

func main() {
	getopt.Parse()
	logger := &log.Logger{Level: log.InfoLevel, Handler: &logHandler{Writer: os.Stderr}}
	if *verbose {
		logger.Level = log.DebugLevel
	}
	if *experienceURL == "" {
		getopt.Usage()
		os.Exit(2)
	}

	home, err := exphostHomeDir()
	fatalOnError(logger, err, "exphost: cannot determine home directory")
	fatalOnError(logger, os.MkdirAll(home, 0700), "exphost: cannot create home directory")

	kvs, err := kvstore.NewFS(filepath.Join(home, "state"))
	fatalOnError(logger, err, "exphost: cannot open state directory")
	db, err := history.Open(filepath.Join(home, "history.sqlite3"))
	fatalOnError(logger, err, "exphost: cannot open history database")
	defer db.Close()
	cache := bundlecache.New(filepath.Join(home, "bundles"))
	go cache.Trim()

	config := &model.HostConfig{
		APIBaseURL:           "https://exp.host",
		TrustKeyURL:          "https://exp.host/--/manifest-public-key",
		Platform:             "android",
		SupportedSDKVersions: supportedSDKVersions,
		UserAgent:            fmt.Sprintf("exphost/%s", version.Version),
	}
	httpConfig := &httpclientx.Config{
		Client:    http.DefaultClient,
		Logger:    logger,
		UserAgent: config.UserAgent,
	}
	supported := sdkver.NewSupportedSet(config.SupportedSDKVersions, config.TemporarySDKVersionOverride)
	store := manifeststore.New(kvs)
	registry := newDispatchRegistry(logger)

	exitcode := 1
	loader := &apploader.Loader{
		Config: config,
		Fetcher: &fetcher.Fetcher{
			Config:    config,
			HTTP:      httpConfig,
			Store:     store,
			Supported: supported,
			Logger:    logger,
		},
		Verifier: &sigverify.Verifier{
			Config: config,
			HTTP:   httpConfig,
			Probe:  model.AlwaysOnlineProbe{},
			Logger: logger,
		},
		Policy:  updatepolicy.New(supported),
		Bundles: &bundle.Loader{HTTP: httpConfig, Cache: cache, Logger: logger},
		Store:   store,
		History: db,
		Callbacks: apploader.Callbacks{
			OnOptimisticManifest: func(m *manifest.Manifest) {
				logger.Infof("exphost: fetched manifest for %s (sdk %s)", m.ID, m.SDKVersion)
			},
			OnManifestCompleted: func(m *manifest.Manifest) {
				logger.Infof("exphost: resolved %s from %s source (verified=%v)",
					m.ID, originLabel(m), m.IsVerified)
			},
			OnBundleCompleted: func(m *manifest.Manifest, bundlePath string) {
				announceLaunch(registry, logger, m, bundlePath)
				fmt.Println(bundlePath)
				exitcode = 0
			},
			OnBackgroundUpdate: func(m *manifest.Manifest, bundlePath string) {
				logger.Infof("exphost: downloaded newer update for %s, available on next launch", m.ID)
			},
			OnError: func(err *apploader.Error) {
				logger.Warnf("exphost: %s", err.DevMessage)
				fmt.Fprintln(os.Stderr, err.UserMessage)
			},
		},
		Options: apploader.Options{
			UseCacheOnly:    *cacheOnly,
			FallbackTimeout: millisOrUnset(*timeoutMs),
		},
		Logger: logger,
	}

	loader.Start(context.Background(), *experienceURL)
	loader.Wait()
	os.Exit(exitcode)
}

// millisOrUnset maps the flag value to a duration, keeping the
// negative "unset" sentinel intact.
func millisOrUnset(ms int64) time.Duration {
	if ms < 0 {
		return -1
	}
	return time.Duration(ms) * time.Millisecond
}

// originLabel describes where a resolved manifest came from.
func originLabel(m *manifest.Manifest) string {
	if m.LoadedFromCache {
		return "cached"
	}
	return "network"
}
