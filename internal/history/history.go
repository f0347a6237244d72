// Package history records launch outcomes in a sqlite database. It
// powers the "recently opened experiences" listing and the failure
// accounting shown by expotool.
package history

import (
	"time"

	"github.com/expo/exphost/internal/model"
	"github.com/pkg/errors"
	"github.com/upper/db/v4"
	"github.com/upper/db/v4/adapter/sqlite"
)

// createLaunchesTable creates the launches table. Creation is
// idempotent so there is no separate migration step.
const createLaunchesTable = `
CREATE TABLE IF NOT EXISTS launches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	experience_url TEXT NOT NULL,
	manifest_name TEXT NOT NULL,
	sdk_version TEXT NOT NULL,
	origin TEXT NOT NULL,
	verified INTEGER NOT NULL,
	error TEXT NOT NULL,
	launched_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS launches_by_url ON launches(experience_url);
`

// Database is the sqlite-backed launch history. Construct with Open.
type Database struct {
	sess db.Session
}

var _ model.Database = &Database{}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Database, error) {
	sess, err := sqlite.Open(sqlite.ConnectionURL{Database: path})
	if err != nil {
		return nil, errors.Wrap(err, "history: cannot open database")
	}
	if _, err := sess.SQL().Exec(createLaunchesTable); err != nil {
		sess.Close()
		return nil, errors.Wrap(err, "history: cannot create schema")
	}
	return &Database{sess: sess}, nil
}

// AddLaunch implements model.Database.
func (d *Database) AddLaunch(rec *model.LaunchRecord) error {
	if rec.LaunchedAt.IsZero() {
		rec.LaunchedAt = time.Now()
	}
	_, err := d.sess.Collection("launches").Insert(rec)
	return errors.Wrap(err, "history: cannot insert launch")
}

// RecentExperiences implements model.Database.
func (d *Database) RecentExperiences(limit int) ([]*model.LaunchRecord, error) {
	rows, err := d.sess.SQL().Query(`
		SELECT id, experience_url, manifest_name, sdk_version,
			origin, verified, error, MAX(launched_at) AS launched_at
		FROM launches
		GROUP BY experience_url
		ORDER BY launched_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "history: cannot list recent experiences")
	}
	defer rows.Close()

	out := []*model.LaunchRecord{}
	for rows.Next() {
		rec := &model.LaunchRecord{}
		err := rows.Scan(&rec.ID, &rec.ExperienceURL, &rec.ManifestName,
			&rec.SDKVersion, &rec.Origin, &rec.Verified, &rec.Error, &rec.LaunchedAt)
		if err != nil {
			return nil, errors.Wrap(err, "history: cannot scan row")
		}
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "history: row iteration failed")
}

// FailureCount implements model.Database.
func (d *Database) FailureCount(experienceURL string) (int64, error) {
	row, err := d.sess.SQL().QueryRow(
		`SELECT COUNT(*) FROM launches WHERE experience_url = ? AND error != ''`,
		experienceURL)
	if err != nil {
		return 0, errors.Wrap(err, "history: cannot count failures")
	}
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, errors.Wrap(err, "history: cannot scan count")
	}
	return count, nil
}

// Close implements model.Database.
func (d *Database) Close() error {
	return d.sess.Close()
}
