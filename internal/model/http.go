package model

//
// Common HTTP definitions.
//

import "net/http"

// HTTPClient is an http client. The stdlib *http.Client satisfies
// this interface out of the box.
type HTTPClient interface {
	// Do behaves like http.Client.Do.
	Do(req *http.Request) (*http.Response, error)

	// CloseIdleConnections closes idle connections.
	CloseIdleConnections()
}

const (
	// HTTPHeaderExponentPlatform identifies the host platform.
	HTTPHeaderExponentPlatform = "Exponent-Platform"

	// HTTPHeaderExponentSDKVersion lists the SDK versions this host supports.
	HTTPHeaderExponentSDKVersion = "Exponent-SDK-Version"

	// HTTPHeaderExponentAcceptSignature tells the server we want a
	// signed manifest envelope.
	HTTPHeaderExponentAcceptSignature = "Exponent-Accept-Signature"

	// HTTPHeaderExpoSession carries the session token, when present.
	HTTPHeaderExpoSession = "Expo-Session"

	// HTTPHeaderExpoJSONError asks the server to emit structured
	// JSON error bodies on failure.
	HTTPHeaderExpoJSONError = "Expo-JSON-Error"
)
