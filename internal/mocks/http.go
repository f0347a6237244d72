// Package mocks contains mocks for the model interfaces.
package mocks

import "net/http"

// HTTPClient allows mocking a model.HTTPClient.
type HTTPClient struct {
	MockDo func(req *http.Request) (*http.Response, error)

	MockCloseIdleConnections func()
}

// Do calls MockDo.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	return c.MockDo(req)
}

// CloseIdleConnections calls MockCloseIdleConnections.
func (c *HTTPClient) CloseIdleConnections() {
	c.MockCloseIdleConnections()
}
