package ingestion

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	baseURL     string
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
	timeout     time.Duration
	userAgent   string
	logger      *slog.Logger
	telemetry   Telemetry
	maxPages    int
}

// WithTokenSource sets the token source used to authenticate requests. The
// source is consulted before every request, so expired tokens are renewed
// transparently. This option is required.
func WithTokenSource(source oauth2.TokenSource) ClientOption {
	return func(c *clientConfig) {
		c.tokenSource = source
	}
}

// WithBaseURL overrides the Ingestion API base URL. Useful for sovereign
// cloud endpoints and tests.
func WithBaseURL(url string) ClientOption {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the default request timeout.
// Note: This option is ignored when WithHTTPClient is used;
// set the timeout directly on the provided client instead.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *clientConfig) {
		c.userAgent = ua
	}
}

// WithLogger enables request logging through the given structured logger.
// Requests log at Info level; bodies log at Debug level.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithTelemetry sets the telemetry collaborator that receives one scope per
// API operation. Without it, telemetry events are discarded.
func WithTelemetry(t Telemetry) ClientOption {
	return func(c *clientConfig) {
		c.telemetry = t
	}
}

// WithMaxPages bounds collection pagination. Traversals that would exceed n
// pages stop with ErrTooManyPages. Zero means unbounded, which is the
// default.
func WithMaxPages(n int) ClientOption {
	return func(c *clientConfig) {
		c.maxPages = n
	}
}

// RequestOption configures individual API requests.
type RequestOption func(*requestConfig)

type requestConfig struct {
	headers http.Header
	query   url.Values
	silent  bool
}

func newRequestConfig() *requestConfig {
	return &requestConfig{
		headers: make(http.Header),
		query:   make(url.Values),
	}
}

func (r *requestConfig) apply(opts ...RequestOption) {
	for _, opt := range opts {
		opt(r)
	}
}

// WithHeader adds a custom header to a request.
func WithHeader(key, value string) RequestOption {
	return func(r *requestConfig) {
		r.headers.Set(key, value)
	}
}

// WithHeaders adds multiple custom headers to a request.
func WithHeaders(headers map[string]string) RequestOption {
	return func(r *requestConfig) {
		for k, v := range headers {
			r.headers.Set(k, v)
		}
	}
}

// WithQuery adds a query parameter to a request. For collections it applies
// to the first page only; continuation pages follow the server's nextLink
// verbatim.
func WithQuery(key, value string) RequestOption {
	return func(r *requestConfig) {
		r.query.Add(key, value)
	}
}

// WithQueryValues merges a set of query parameters into a request.
func WithQueryValues(values url.Values) RequestOption {
	return func(r *requestConfig) {
		for k, vs := range values {
			for _, v := range vs {
				r.query.Add(k, v)
			}
		}
	}
}

// WithSilent suppresses request logging for this request.
func WithSilent() RequestOption {
	return func(r *requestConfig) {
		r.silent = true
	}
}

// WithRequestID sets the MS-RequestId header for tracing.
func WithRequestID(id string) RequestOption {
	return WithHeader("MS-RequestId", id)
}

// WithCorrelationID sets the MS-CorrelationId header, overriding the one the
// telemetry scope would supply.
func WithCorrelationID(id string) RequestOption {
	return WithHeader("MS-CorrelationId", id)
}
