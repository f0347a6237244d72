// Package testingx contains helpers shared by tests.
package testingx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/expo/exphost/internal/runtimex"
)

// MustNewHTTPServer creates a local HTTP server or panics.
func MustNewHTTPServer(handler http.Handler) *httptest.Server {
	server := httptest.NewServer(handler)
	runtimex.Assert(server != nil, "httptest.NewServer returned nil")
	return server
}

// HTTPHandlerStatus returns a handler answering with the given status
// code and an empty body.
func HTTPHandlerStatus(statusCode int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(statusCode)
	})
}

// HTTPHandlerJSON returns a handler answering with the JSON
// serialization of the given value.
func HTTPHandlerJSON(v any) http.Handler {
	data, err := json.Marshal(v)
	runtimex.PanicOnError(err, "json.Marshal failed")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	})
}

// HTTPHandlerBytes returns a handler answering with the given body.
func HTTPHandlerBytes(data []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	})
}
