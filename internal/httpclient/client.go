package httpclient

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
)

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// NewLoggingHTTPClient creates an HTTP client that logs each provider round trip at debug level.
// Request bodies are never logged; they carry user signals and attachments.
func NewLoggingHTTPClient(provider string, timeout time.Duration, logger arbor.ILogger) *http.Client {
	if logger == nil {
		return NewDefaultHTTPClient(timeout)
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &loggingTransport{
			next:     http.DefaultTransport,
			provider: provider,
			logger:   logger,
		},
	}
}

type loggingTransport struct {
	next     http.RoundTripper
	provider string
	logger   arbor.ILogger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		t.logger.Debug().
			Str("provider", t.provider).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Dur("duration", duration).
			Err(err).
			Msg("Provider request failed")
		return nil, err
	}

	t.logger.Debug().
		Str("provider", t.provider).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("Provider request")
	return resp, nil
}
