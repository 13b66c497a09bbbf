// Package sheets reads episode logs from a Google Sheets style REST API.
package sheets

import (
	"net/http"
	"time"

	"github.com/avielmenter/CritiQL/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBaseURL points the client at another API host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithAPIKey sets the key sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout bounds each Fetch call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxRows caps the rows read from each sheet, header included.
func WithMaxRows(n int) Option {
	return func(c *Client) {
		if n > 1 {
			c.maxRows = n
		}
	}
}

// WithAliases adds header aliases on top of the defaults. Keys are matched
// case-insensitively.
func WithAliases(aliases map[string]string) Option {
	return func(c *Client) {
		for k, v := range aliases {
			c.aliases[normalizeHeader(k)] = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
