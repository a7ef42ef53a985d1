package services

import (
	"net/http"
	"time"
)

// DefaultUserAgent identifies the tool to tracker sites. Several sites
// throttle or block requests that arrive with no User-Agent at all.
const DefaultUserAgent = "uplink/1.0"

// NewHTTPClient builds the HTTP client every outbound component shares:
// a hard timeout and a transport that stamps the User-Agent header on
// requests that do not set their own.
func NewHTTPClient(timeout time.Duration, userAgent string) *http.Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{agent: userAgent, base: http.DefaultTransport},
	}
}

type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(clone)
}
