package model

//
// Launch history database
//

import "time"

// LaunchRecord describes the outcome of one launch attempt. The zero
// value is not valid; fill in at least ExperienceURL.
type LaunchRecord struct {
	// ID is the autoincrement row ID.
	ID int64 `db:"id,omitempty"`

	// ExperienceURL is the normalized experience URL.
	ExperienceURL string `db:"experience_url"`

	// ManifestName is the display name from the launched manifest.
	ManifestName string `db:"manifest_name"`

	// SDKVersion is the SDK version of the launched manifest.
	SDKVersion string `db:"sdk_version"`

	// Origin says where the launched candidate came from
	// (embedded, cached, remote).
	Origin string `db:"origin"`

	// Verified says whether the manifest was verified.
	Verified bool `db:"verified"`

	// Error contains the failure message, or an empty string.
	Error string `db:"error"`

	// LaunchedAt is when the launch happened.
	LaunchedAt time.Time `db:"launched_at"`
}

// Database stores the launch history. It powers the "recently opened
// experiences" listing and failure accounting.
type Database interface {
	// AddLaunch inserts a launch record.
	AddLaunch(rec *LaunchRecord) error

	// RecentExperiences returns the most recent launch per distinct
	// experience URL, newest first, up to limit entries.
	RecentExperiences(limit int) ([]*LaunchRecord, error)

	// FailureCount counts failed launches for the given experience URL.
	FailureCount(experienceURL string) (int64, error)

	// Close closes the database.
	Close() error
}
