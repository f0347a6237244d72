package httpclientx

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/expo/exphost/internal/model"
	"github.com/expo/exphost/internal/testingx"
	"github.com/google/go-cmp/cmp"
)

func newConfig() *Config {
	return &Config{
		Client:    http.DefaultClient,
		Logger:    model.DiscardLogger,
		UserAgent: "exphost-test",
	}
}

func TestGetRaw(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		expected := []byte("raw body")
		server := testingx.MustNewHTTPServer(testingx.HTTPHandlerBytes(expected))
		defer server.Close()

		got, err := GetRaw(context.Background(), newConfig(), server.URL, nil)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(expected, got); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("sets the User-Agent and extra headers", func(t *testing.T) {
		var gotUserAgent, gotPlatform string
		server := testingx.MustNewHTTPServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUserAgent = r.Header.Get("User-Agent")
			gotPlatform = r.Header.Get(model.HTTPHeaderExponentPlatform)
		}))
		defer server.Close()

		opts := &Options{Headers: http.Header{model.HTTPHeaderExponentPlatform: {"android"}}}
		if _, err := GetRaw(context.Background(), newConfig(), server.URL, opts); err != nil {
			t.Fatal(err)
		}
		if gotUserAgent != "exphost-test" {
			t.Fatal("unexpected User-Agent", gotUserAgent)
		}
		if gotPlatform != "android" {
			t.Fatal("unexpected platform header", gotPlatform)
		}
	})

	t.Run("cache modes set Cache-Control", func(t *testing.T) {
		var gotCacheControl string
		server := testingx.MustNewHTTPServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotCacheControl = r.Header.Get("Cache-Control")
		}))
		defer server.Close()

		for _, tc := range []struct {
			mode   CacheMode
			expect string
		}{
			{CacheDefault, ""},
			{CacheOnly, "only-if-cached"},
			{CacheBypass, "no-cache"},
		} {
			opts := &Options{CacheMode: tc.mode}
			if _, err := GetRaw(context.Background(), newConfig(), server.URL, opts); err != nil {
				t.Fatal(err)
			}
			if gotCacheControl != tc.expect {
				t.Fatalf("mode %d: unexpected Cache-Control %q", tc.mode, gotCacheControl)
			}
		}
	})

	t.Run("transport errors match ErrFetch", func(t *testing.T) {
		_, err := GetRaw(context.Background(), newConfig(), "http://127.0.0.1:1/", nil)
		if !errors.Is(err, model.ErrFetch) {
			t.Fatal("unexpected error", err)
		}
	})

	t.Run("canceled context wins over the transport error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		server := testingx.MustNewHTTPServer(testingx.HTTPHandlerStatus(200))
		defer server.Close()

		_, err := GetRaw(ctx, newConfig(), server.URL, nil)
		if !errors.Is(err, context.Canceled) {
			t.Fatal("unexpected error", err)
		}
	})

	t.Run("plain status error", func(t *testing.T) {
		server := testingx.MustNewHTTPServer(testingx.HTTPHandlerStatus(500))
		defer server.Close()

		_, err := GetRaw(context.Background(), newConfig(), server.URL, nil)
		var serr *StatusError
		if !errors.As(err, &serr) || serr.StatusCode != 500 {
			t.Fatal("unexpected error", err)
		}
		if !errors.Is(err, model.ErrFetch) {
			t.Fatal("expected the error to match ErrFetch")
		}
	})

	t.Run("structured status error", func(t *testing.T) {
		server := testingx.MustNewHTTPServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(404)
			w.Write([]byte(`{"errorCode":"EXPERIENCE_NOT_FOUND","message":"no such experience"}`))
		}))
		defer server.Close()

		_, err := GetRaw(context.Background(), newConfig(), server.URL, nil)
		var serr *StatusError
		if !errors.As(err, &serr) {
			t.Fatal("unexpected error", err)
		}
		if serr.ErrorCode != "EXPERIENCE_NOT_FOUND" || serr.Message != "no such experience" {
			t.Fatal("structured body not parsed", serr)
		}
	})
}

func TestGetJSON(t *testing.T) {
	type apiResponse struct {
		Name string `json:"name"`
	}

	t.Run("success", func(t *testing.T) {
		server := testingx.MustNewHTTPServer(testingx.HTTPHandlerJSON(&apiResponse{Name: "circles"}))
		defer server.Close()

		got, err := GetJSON[*apiResponse](context.Background(), newConfig(), server.URL, nil)
		if err != nil {
			t.Fatal(err)
		}
		if got.Name != "circles" {
			t.Fatal("unexpected response", got)
		}
	})

	t.Run("parse error", func(t *testing.T) {
		server := testingx.MustNewHTTPServer(testingx.HTTPHandlerBytes([]byte("{")))
		defer server.Close()

		got, err := GetJSON[*apiResponse](context.Background(), newConfig(), server.URL, nil)
		if !errors.Is(err, model.ErrParse) {
			t.Fatal("unexpected error", err)
		}
		if got != nil {
			t.Fatal("expected the zero value")
		}
	})
}

func TestErrIsCacheMiss(t *testing.T) {
	server := testingx.MustNewHTTPServer(testingx.HTTPHandlerStatus(http.StatusGatewayTimeout))
	defer server.Close()

	_, err := GetRaw(context.Background(), newConfig(), server.URL, &Options{CacheMode: CacheOnly})
	if !ErrIsCacheMiss(err) {
		t.Fatal("expected a cache miss", err)
	}
	if ErrIsCacheMiss(errors.New("unrelated")) {
		t.Fatal("unrelated errors must not match")
	}
}
