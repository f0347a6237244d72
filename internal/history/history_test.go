package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/expo/exphost/internal/model"
)

func openTestDatabase(t *testing.T) *Database {
	d, err := Open(filepath.Join(t.TempDir(), "history.sqlite3"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestHistory(t *testing.T) {
	d := openTestDatabase(t)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	records := []*model.LaunchRecord{{
		ExperienceURL: "https://exp.host/@alice/circles",
		ManifestName:  "Circles",
		SDKVersion:    "30.0.0",
		Origin:        "remote",
		Verified:      true,
		LaunchedAt:    base,
	}, {
		ExperienceURL: "https://exp.host/@bob/maze",
		ManifestName:  "Maze",
		SDKVersion:    "29.0.0",
		Origin:        "cached",
		Error:         "bundle download failed",
		LaunchedAt:    base.Add(time.Hour),
	}, {
		ExperienceURL: "https://exp.host/@alice/circles",
		ManifestName:  "Circles",
		SDKVersion:    "30.0.0",
		Origin:        "cached",
		Verified:      true,
		LaunchedAt:    base.Add(2 * time.Hour),
	}}
	for _, rec := range records {
		if err := d.AddLaunch(rec); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("recent experiences are distinct and newest first", func(t *testing.T) {
		got, err := d.RecentExperiences(10)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 {
			t.Fatal("unexpected number of experiences", len(got))
		}
		if got[0].ExperienceURL != "https://exp.host/@alice/circles" {
			t.Fatal("unexpected first experience", got[0].ExperienceURL)
		}
		if got[0].Origin != "cached" {
			t.Fatal("expected the latest launch for the experience")
		}
	})

	t.Run("limit is honored", func(t *testing.T) {
		got, err := d.RecentExperiences(1)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 {
			t.Fatal("unexpected number of experiences", len(got))
		}
	})

	t.Run("failure count", func(t *testing.T) {
		count, err := d.FailureCount("https://exp.host/@bob/maze")
		if err != nil {
			t.Fatal(err)
		}
		if count != 1 {
			t.Fatal("unexpected failure count", count)
		}
		count, err = d.FailureCount("https://exp.host/@alice/circles")
		if err != nil {
			t.Fatal(err)
		}
		if count != 0 {
			t.Fatal("unexpected failure count", count)
		}
	})

	t.Run("zero launch time defaults to now", func(t *testing.T) {
		rec := &model.LaunchRecord{
			ExperienceURL: "https://exp.host/@carol/chess",
			ManifestName:  "Chess",
			SDKVersion:    "30.0.0",
			Origin:        "embedded",
		}
		if err := d.AddLaunch(rec); err != nil {
			t.Fatal(err)
		}
		if rec.LaunchedAt.IsZero() {
			t.Fatal("expected LaunchedAt to be filled in")
		}
	})
}
