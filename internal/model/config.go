package model

//
// Host configuration
//

import "time"

// HostConfig is the immutable host configuration assembled once at
// process startup and passed explicitly to every component that needs
// it. There are no mutable configuration globals anywhere in exphost.
type HostConfig struct {
	// APIBaseURL is the base URL of the manifest server
	// (e.g., "https://exp.host").
	APIBaseURL string

	// TrustKeyURL is the well-known URL serving the PEM-encoded RSA
	// public key used to verify manifest signatures.
	TrustKeyURL string

	// Platform is the host platform identifier sent with every
	// manifest request (e.g., "android").
	Platform string

	// SupportedSDKVersions enumerates the SDK versions for which this
	// build carries an installed framework copy.
	SupportedSDKVersions []string

	// TemporarySDKVersionOverride optionally whitelists one extra SDK
	// version beyond the supported set.
	TemporarySDKVersionOverride string

	// SessionToken is the optional session token attached to manifest
	// requests when present.
	SessionToken string

	// ShellExperienceID is the ID of the main/shell experience, which
	// is always trusted and never verified over the network.
	ShellExperienceID string

	// UpdatesDisabled administratively disables all remote updates for
	// this build: resolution uses the embedded manifest and bundle and
	// never touches the network.
	UpdatesDisabled bool

	// Standalone says whether this is a standalone build rather than
	// an Expo-Go-hosted one. Standalone builds do not wait for remote
	// manifests by default.
	Standalone bool

	// UserAgent is the User-Agent header value to use.
	UserAgent string
}

// DefaultFallbackTimeout returns the default amount of time resolution
// will wait for a remote manifest before falling back to the best
// locally available candidate.
func (c *HostConfig) DefaultFallbackTimeout() time.Duration {
	if c.Standalone {
		return 0
	}
	return 60 * time.Second
}
