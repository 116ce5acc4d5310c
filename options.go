package flagsmith

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/exp/maps"
)

type Option func(c *Client)

// Make sure the Option functions implement the Option type.
var _ = []Option{
	WithBaseURL(""),
	WithRequestTimeout(0),
	WithAnalytics(),
	WithAnalyticsFlushPeriod(0),
	WithAnalyticsStore(nil),
	WithCustomHeaders(nil),
	WithProxy(""),
	WithLogger(nil),
	WithRestyClient(nil),
	WithContext(context.TODO()),
}

// WithBaseURL overrides the API root, e.g. for self-hosted installations.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.config.baseURL = normalizeBaseURL(url)
	}
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.config.timeout = timeout
	}
}

// WithAnalytics enables flag analytics. An analytics store must be provided
// with WithAnalyticsStore.
func WithAnalytics() Option {
	return func(c *Client) {
		c.config.enableAnalytics = true
	}
}

func WithAnalyticsFlushPeriod(period time.Duration) Option {
	return func(c *Client) {
		c.config.analyticsFlushPeriod = period
	}
}

// WithAnalyticsStore sets where pending analytics counts are kept. The
// client closes the store on Close when it implements io.Closer.
func WithAnalyticsStore(store AnalyticsStore) Option {
	return func(c *Client) {
		c.config.analyticsStore = store
	}
}

// WithCustomHeaders adds headers to every request, including those sent
// through a client given by WithRestyClient.
func WithCustomHeaders(headers map[string]string) Option {
	return func(c *Client) {
		if c.config.customHeaders == nil {
			c.config.customHeaders = make(map[string]string, len(headers))
		}
		maps.Copy(c.config.customHeaders, headers)
	}
}

func WithProxy(proxyURL string) Option {
	return func(c *Client) {
		if proxyURL != "" {
			c.config.proxyURL = proxyURL
		}
	}
}

// WithLogger sets the logger used by the client and its HTTP layer.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.log = logger
		}
	}
}

// WithRestyClient replaces the underlying HTTP client. Its timeout is kept
// if already set.
func WithRestyClient(client *resty.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
			c.customClient = true
		}
	}
}

// WithContext sets the context bounding the lifetime of the analytics flusher.
func WithContext(ctx context.Context) Option {
	return func(c *Client) {
		c.ctx = ctx
	}
}
