package mocks

import "github.com/expo/exphost/internal/model"

// Database allows mocking a model.Database.
type Database struct {
	MockAddLaunch func(rec *model.LaunchRecord) error

	MockRecentExperiences func(limit int) ([]*model.LaunchRecord, error)

	MockFailureCount func(experienceURL string) (int64, error)

	MockClose func() error
}

// AddLaunch calls MockAddLaunch.
func (d *Database) AddLaunch(rec *model.LaunchRecord) error {
	return d.MockAddLaunch(rec)
}

// RecentExperiences calls MockRecentExperiences.
func (d *Database) RecentExperiences(limit int) ([]*model.LaunchRecord, error) {
	return d.MockRecentExperiences(limit)
}

// FailureCount calls MockFailureCount.
func (d *Database) FailureCount(experienceURL string) (int64, error) {
	return d.MockFailureCount(experienceURL)
}

// Close calls MockClose.
func (d *Database) Close() error {
	return d.MockClose()
}
