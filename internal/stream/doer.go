package stream

import (
	"net/http"
	"time"
)

// Doer abstracts the HTTP round trip so the read loop can be exercised
// against canned responses in tests.
//
//go:generate mockgen -destination=mocks/doer_mock.go -package=mocks github.com/davberna/lyricwatch/internal/stream Doer
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewStreamHTTPClient returns an http.Client tuned for a long-lived event
// stream: no total timeout (the body is read indefinitely) and compression
// disabled so lines arrive as the server flushes them.
func NewStreamHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DisableCompression:    true,
			ExpectContinueTimeout: 1 * time.Second,
		},
		Timeout: 0,
	}
}
