package manifeststore

import (
	"errors"
	"testing"

	"github.com/expo/exphost/internal/kvstore"
)

func TestExperienceRecordRoundTrip(t *testing.T) {
	store := New(&kvstore.Memory{})

	t.Run("missing record", func(t *testing.T) {
		_, err := store.ExperienceRecord("exps://exp.host/@alice/circles")
		if !errors.Is(err, kvstore.ErrNoSuchKey) {
			t.Fatal("unexpected error", err)
		}
	})

	t.Run("upsert then get", func(t *testing.T) {
		rec := &ExperienceRecord{
			ExperienceURL: "exps://exp.host/@alice/circles",
			ManifestURL:   "https://exp.host/@alice/circles",
			BundleURL:     "https://classic-assets.eascdn.net/bundle-abc",
		}
		if err := store.UpsertExperience(rec); err != nil {
			t.Fatal(err)
		}
		got, err := store.ExperienceRecord("exps://exp.host/@alice/circles")
		if err != nil {
			t.Fatal(err)
		}
		if got.BundleURL != rec.BundleURL {
			t.Fatal("unexpected bundle URL")
		}
		if got.UpdatedAt.IsZero() {
			t.Fatal("expected UpdatedAt to be set")
		}
	})

	t.Run("cache-defeating params share one record", func(t *testing.T) {
		got, err := store.ExperienceRecord("https://exp.host/@alice/circles?cache-bust=999")
		if err != nil {
			t.Fatal(err)
		}
		if got.ManifestURL != "https://exp.host/@alice/circles" {
			t.Fatal("normalization failed")
		}
	})
}

func TestSetLastLoadHadError(t *testing.T) {
	store := New(&kvstore.Memory{})

	t.Run("creates the record when absent", func(t *testing.T) {
		if err := store.SetLastLoadHadError("exps://exp.host/@bob/maze", true); err != nil {
			t.Fatal(err)
		}
		rec, err := store.ExperienceRecord("exps://exp.host/@bob/maze")
		if err != nil {
			t.Fatal(err)
		}
		if !rec.LastLoadHadError {
			t.Fatal("expected LastLoadHadError")
		}
	})

	t.Run("clears the flag", func(t *testing.T) {
		if err := store.SetLastLoadHadError("exps://exp.host/@bob/maze", false); err != nil {
			t.Fatal(err)
		}
		rec, err := store.ExperienceRecord("exps://exp.host/@bob/maze")
		if err != nil {
			t.Fatal(err)
		}
		if rec.LastLoadHadError {
			t.Fatal("expected the flag to be cleared")
		}
	})
}

func TestLastKnownGood(t *testing.T) {
	store := New(&kvstore.Memory{})

	t.Run("missing", func(t *testing.T) {
		_, err := store.LastKnownGood("https://exp.host/@alice/circles")
		if !errors.Is(err, kvstore.ErrNoSuchKey) {
			t.Fatal("unexpected error", err)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		good := &GoodManifest{
			ManifestJSON: []byte(`{"id":"@alice/circles"}`),
			BundleURL:    "https://classic-assets.eascdn.net/bundle-abc",
			BundlePath:   "/tmp/bundle-abc",
		}
		if err := store.SetLastKnownGood("https://exp.host/@alice/circles", good); err != nil {
			t.Fatal(err)
		}
		got, err := store.LastKnownGood("https://exp.host/@alice/circles")
		if err != nil {
			t.Fatal(err)
		}
		if got.BundlePath != "/tmp/bundle-abc" {
			t.Fatal("unexpected bundle path")
		}
		if got.StoredAt.IsZero() {
			t.Fatal("expected StoredAt to be set")
		}
	})
}
