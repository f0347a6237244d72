package manifest

//
// Experience URL canonicalization.
//

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/expo/exphost/internal/model"
)

// devTunnelSuffix is the host suffix of development tunnels. Manifests
// for these hosts must never be served from cache.
const devTunnelSuffix = ".exp.direct"

// cacheDefeatingParams are query parameters that exist only to defeat
// intermediary caches and must not differentiate store keys.
var cacheDefeatingParams = []string{"cache-bust", "_", "ts"}

// CanonicalFetchURL rewrites an experience URL into its http(s) fetch
// form: exp/exps schemes become http(s), any deep-link suffix is
// stripped, and redirect-wrapper shapes are undone.
func CanonicalFetchURL(experienceURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(experienceURL))
	if err != nil {
		return "", fmt.Errorf("%w: %s", model.ErrParse, err.Error())
	}
	switch u.Scheme {
	case "exp", "http":
		u.Scheme = "http"
		if !IsDevHost(u.Hostname()) {
			u.Scheme = "https"
		}
	case "exps", "https", "":
		u.Scheme = "https"
	default:
		// custom deep-link schemes registered by shell apps
		u.Scheme = "https"
	}
	// strip the deep-link suffix, which addresses a screen inside the
	// experience rather than the experience itself
	if idx := strings.Index(u.Path, "/--/"); idx >= 0 {
		u.Path = u.Path[:idx]
	}
	u.Fragment = ""
	return u.String(), nil
}

// NormalizeKey normalizes an experience URL into a stable store key so
// that two URLs differing only by cache-defeating query parameters or
// scheme spelling share one record.
func NormalizeKey(experienceURL string) (string, error) {
	canonical, err := CanonicalFetchURL(experienceURL)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(canonical)
	if err != nil {
		return "", fmt.Errorf("%w: %s", model.ErrParse, err.Error())
	}
	query := u.Query()
	for _, param := range cacheDefeatingParams {
		query.Del(param)
	}
	u.RawQuery = query.Encode()
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String(), nil
}

// IsDevHost returns whether the host is a development host: localhost,
// a loopback address, or a development tunnel.
func IsDevHost(host string) bool {
	host = strings.ToLower(host)
	return host == "localhost" || host == "127.0.0.1" || host == "::1" ||
		strings.HasSuffix(host, devTunnelSuffix)
}
