package kvstore

import (
	"errors"
	"testing"

	"github.com/expo/exphost/internal/model"
	"github.com/google/go-cmp/cmp"
)

func testKeyValueStore(t *testing.T, kvs model.KeyValueStore) {
	t.Run("missing key", func(t *testing.T) {
		if _, err := kvs.Get("nonexistent"); !errors.Is(err, ErrNoSuchKey) {
			t.Fatal("unexpected error", err)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		value := []byte(`{"succeeded":true}`)
		if err := kvs.Set("result", value); err != nil {
			t.Fatal(err)
		}
		got, err := kvs.Get("result")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(value, got); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("last writer wins", func(t *testing.T) {
		if err := kvs.Set("result", []byte("first")); err != nil {
			t.Fatal(err)
		}
		if err := kvs.Set("result", []byte("second")); err != nil {
			t.Fatal(err)
		}
		got, err := kvs.Get("result")
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "second" {
			t.Fatal("unexpected value", string(got))
		}
	})
}

func TestMemory(t *testing.T) {
	testKeyValueStore(t, &Memory{})
}

func TestFS(t *testing.T) {
	kvs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	testKeyValueStore(t, kvs)
}

func TestFSPersistsAcrossReopens(t *testing.T) {
	dirpath := t.TempDir()
	first, err := NewFS(dirpath)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Set("state", []byte("durable")); err != nil {
		t.Fatal(err)
	}
	second, err := NewFS(dirpath)
	if err != nil {
		t.Fatal(err)
	}
	got, err := second.Get("state")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "durable" {
		t.Fatal("unexpected value", string(got))
	}
}
