// Package common holds small helpers shared by the HTTP integrations.
package common

import (
	_ "embed"
	"net/http"
	"strings"
	"time"
)

//go:embed VERSION
var rawVersion string

// Version returns the build version baked into the binary.
func Version() string {
	return strings.TrimSpace(rawVersion)
}

// identifyingTransport stamps every outgoing request with this service's
// User-Agent so provider logs can tell us apart.
type identifyingTransport struct {
	base http.RoundTripper
}

func (t identifyingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// the request may be retried or shared, so never mutate it in place
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", "CheapCharge/"+Version())
	return t.base.RoundTrip(clone)
}

// HTTPClient returns a client with a bounded timeout and the service
// User-Agent applied to every request.
func HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: identifyingTransport{base: http.DefaultTransport},
		Timeout:   timeout,
	}
}
