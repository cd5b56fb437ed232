package feed

import (
	"net/http"
	"time"

	"github.com/okian/eventwatch/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithURLs overrides the three feed document locations. Empty values keep
// the default.
func WithURLs(events, raids, eggs string) Option {
	return func(c *Client) {
		if events != "" {
			c.eventsURL = events
		}
		if raids != "" {
			c.raidsURL = raids
		}
		if eggs != "" {
			c.eggsURL = eggs
		}
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithRawEventsPath mirrors every fetched events document to path.
func WithRawEventsPath(path string) Option {
	return func(c *Client) {
		c.rawEventsPath = path
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
