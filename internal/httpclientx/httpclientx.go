// Package httpclientx contains HTTP client extensions used by the
// manifest fetcher, the signature verifier, and the bundle loader.
package httpclientx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/expo/exphost/internal/model"
)

// Config contains configuration shared by [GetJSON] and [GetRaw].
//
// The zero value is invalid; initialize the MANDATORY fields.
type Config struct {
	// Client is the MANDATORY [model.HTTPClient] to use.
	Client model.HTTPClient

	// Logger is the MANDATORY [model.Logger] to use.
	Logger model.Logger

	// UserAgent is the MANDATORY User-Agent header value to use.
	UserAgent string
}

// CacheMode selects how a request interacts with the HTTP cache layer.
type CacheMode int

const (
	// CacheDefault lets the cache layer apply its normal semantics.
	CacheDefault = CacheMode(iota)

	// CacheOnly requires the response to come from the cache layer
	// without touching the network.
	CacheOnly

	// CacheBypass forces a network round trip ignoring any cached
	// response.
	CacheBypass
)

// Options contains per-request options. The zero value is valid.
type Options struct {
	// Headers contains OPTIONAL extra request headers.
	Headers http.Header

	// CacheMode is the cache interaction mode.
	CacheMode CacheMode
}

// StatusError is the error returned on a non-2xx response. When the
// server emitted a structured JSON error body, ErrorCode and Message
// carry its contents.
type StatusError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// ErrorCode is the structured error code, when available.
	ErrorCode string

	// Message is the structured error message, when available.
	Message string
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("httpclientx: %d %s: %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("httpclientx: unexpected status %d", e.StatusCode)
}

// Unwrap makes a StatusError match model.ErrFetch.
func (e *StatusError) Unwrap() error {
	return model.ErrFetch
}

// errorBody is the structured error body emitted by the manifest server.
type errorBody struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// GetRaw sends a GET request and reads a raw response body.
func GetRaw(ctx context.Context, config *Config, URL string, opts *Options) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrFetch, err.Error())
	}
	return do(req, config, opts)
}

// GetJSON sends a GET request and parses a JSON response body.
//
// This function either returns an error or a valid Output.
func GetJSON[Output any](ctx context.Context, config *Config, URL string, opts *Options) (Output, error) {
	rawrespbody, err := GetRaw(ctx, config, URL, opts)
	if err != nil {
		return zeroValue[Output](), err
	}
	var output Output
	if err := json.Unmarshal(rawrespbody, &output); err != nil {
		return zeroValue[Output](), fmt.Errorf("%w: %s", model.ErrParse, err.Error())
	}
	return output, nil
}

// do performs the request and handles the response.
func do(req *http.Request, config *Config, opts *Options) ([]byte, error) {
	if opts == nil {
		opts = &Options{}
	}
	req.Header.Set("User-Agent", config.UserAgent)
	for key, values := range opts.Headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	switch opts.CacheMode {
	case CacheOnly:
		req.Header.Set("Cache-Control", "only-if-cached")
	case CacheBypass:
		req.Header.Set("Cache-Control", "no-cache")
	default:
		// use the cache layer's default semantics
	}

	config.Logger.Debugf("httpclientx: GET %s", req.URL.String())
	resp, err := config.Client.Do(req)
	if err != nil {
		// wrap the transport error unless the context says otherwise
		if cause := req.Context().Err(); cause != nil {
			return nil, cause
		}
		return nil, fmt.Errorf("%w: %s", model.ErrFetch, err.Error())
	}
	defer resp.Body.Close()

	rawrespbody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrFetch, err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(resp.StatusCode, rawrespbody)
	}
	return rawrespbody, nil
}

// newStatusError attempts to parse a structured error body and falls
// back to a generic status error otherwise.
func newStatusError(statusCode int, rawrespbody []byte) error {
	serr := &StatusError{StatusCode: statusCode}
	var body errorBody
	if err := json.Unmarshal(rawrespbody, &body); err == nil && body.ErrorCode != "" {
		serr.ErrorCode, serr.Message = body.ErrorCode, body.Message
	}
	return serr
}

// ErrIsCacheMiss returns whether the error is a cache layer miss for a
// request issued with CacheOnly. RFC 7234 prescribes 504 for a cache
// that cannot satisfy only-if-cached.
func ErrIsCacheMiss(err error) bool {
	var serr *StatusError
	return errors.As(err, &serr) && serr.StatusCode == http.StatusGatewayTimeout
}

// zeroValue returns the zero value of a type.
func zeroValue[T any]() T {
	return *new(T)
}
