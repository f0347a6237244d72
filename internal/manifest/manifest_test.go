package manifest

import (
	"errors"
	"testing"

	"github.com/expo/exphost/internal/model"
)

func TestParse(t *testing.T) {
	t.Run("valid manifest", func(t *testing.T) {
		data := []byte(`{
			"id": "@alice/circles",
			"name": "Circles",
			"sdkVersion": "30.0.0",
			"bundleUrl": "https://classic-assets.eascdn.net/bundle-abc",
			"commitTime": "2026-05-01T10:00:00Z",
			"publishedTime": "2026-05-01T09:59:00Z",
			"updates": {
				"checkAutomatically": "ON_ERROR_RECOVERY",
				"fallbackToCacheTimeout": 15000
			}
		}`)
		m, err := Parse(data)
		if err != nil {
			t.Fatal(err)
		}
		if m.ID != "@alice/circles" || m.SDKVersion != "30.0.0" {
			t.Fatal("unexpected identity fields")
		}
		if m.CheckAutomatically != CheckOnErrorRecovery {
			t.Fatal("unexpected check policy")
		}
		if m.FallbackToCacheTimeout != 15000 {
			t.Fatal("unexpected fallback timeout")
		}
		if m.AnonymousScope {
			t.Fatal("unexpected anonymous scope")
		}
	})

	t.Run("defaults", func(t *testing.T) {
		m, err := Parse([]byte(`{"id":"@anonymous/play","sdkVersion":"30.0.0","bundleUrl":"https://x/b"}`))
		if err != nil {
			t.Fatal(err)
		}
		if m.CheckAutomatically != CheckOnLoad {
			t.Fatal("expected ON_LOAD default")
		}
		if m.FallbackToCacheTimeout != -1 {
			t.Fatal("expected unset fallback timeout")
		}
		if !m.AnonymousScope {
			t.Fatal("expected anonymous scope")
		}
	})

	t.Run("malformed JSON", func(t *testing.T) {
		if _, err := Parse([]byte(`{`)); !errors.Is(err, model.ErrParse) {
			t.Fatal("unexpected error", err)
		}
	})

	t.Run("missing bundleUrl", func(t *testing.T) {
		if _, err := Parse([]byte(`{"id":"@a/b","sdkVersion":"30.0.0"}`)); !errors.Is(err, model.ErrParse) {
			t.Fatal("unexpected error", err)
		}
	})

	t.Run("missing sdkVersion", func(t *testing.T) {
		if _, err := Parse([]byte(`{"id":"@a/b","bundleUrl":"https://x/b"}`)); !errors.Is(err, model.ErrParse) {
			t.Fatal("unexpected error", err)
		}
	})
}

func TestWithVerifiedIsMonotonic(t *testing.T) {
	m := &Manifest{IsVerified: true}
	if !m.WithVerified(false).IsVerified {
		t.Fatal("a verified manifest must never be demoted")
	}
	if !(&Manifest{}).WithVerified(true).IsVerified {
		t.Fatal("expected promotion to verified")
	}
}

func TestCanonicalFetchURL(t *testing.T) {
	type testcase struct {
		name   string
		input  string
		expect string
	}
	cases := []testcase{{
		name:   "exps scheme",
		input:  "exps://exp.host/@alice/circles",
		expect: "https://exp.host/@alice/circles",
	}, {
		name:   "exp scheme on a public host",
		input:  "exp://exp.host/@alice/circles",
		expect: "https://exp.host/@alice/circles",
	}, {
		name:   "exp scheme on localhost stays http",
		input:  "exp://localhost:19000",
		expect: "http://localhost:19000",
	}, {
		name:   "deep-link suffix is stripped",
		input:  "exps://exp.host/@alice/circles/--/settings/profile",
		expect: "https://exp.host/@alice/circles",
	}, {
		name:   "query survives",
		input:  "https://exp.host/@alice/circles?release-channel=staging",
		expect: "https://exp.host/@alice/circles?release-channel=staging",
	}}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CanonicalFetchURL(tc.input)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.expect {
				t.Fatalf("got %s want %s", got, tc.expect)
			}
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	a, err := NormalizeKey("exps://exp.host/@alice/circles?cache-bust=123")
	if err != nil {
		t.Fatal(err)
	}
	b, err := NormalizeKey("https://EXP.host/@alice/circles/")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("keys differ: %s vs %s", a, b)
	}
}

func TestIsDevHost(t *testing.T) {
	for _, host := range []string{"localhost", "127.0.0.1", "myapp.exp.direct"} {
		if !IsDevHost(host) {
			t.Fatal("expected dev host", host)
		}
	}
	if IsDevHost("exp.host") {
		t.Fatal("exp.host is not a dev host")
	}
}

func TestNewer(t *testing.T) {
	t.Run("by commit time", func(t *testing.T) {
		older := &Manifest{CommitTime: "2026-05-01T10:00:00Z"}
		newer := &Manifest{CommitTime: "2026-05-02T10:00:00+00:00"}
		if Newer(older, newer) != newer {
			t.Fatal("expected the newer manifest")
		}
		if Newer(newer, older) != newer {
			t.Fatal("expected the newer manifest")
		}
	})

	t.Run("falls back to publish time", func(t *testing.T) {
		a := &Manifest{PublishedTime: "2026-05-01T10:00:00Z"}
		b := &Manifest{CommitTime: "2026-05-02T10:00:00Z", PublishedTime: "2026-05-03T10:00:00Z"}
		if Newer(a, b) != b {
			t.Fatal("expected publish-time comparison to pick b")
		}
	})

	t.Run("nil operands", func(t *testing.T) {
		m := &Manifest{}
		if Newer(nil, m) != m || Newer(m, nil) != m {
			t.Fatal("nil operand must yield the other manifest")
		}
	})
}
