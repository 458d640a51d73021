// Package ingestion provides a Go client for the Microsoft Partner Center
// Ingestion API.
//
// Basic usage:
//
//	client, err := ingestion.NewClient(
//	    ingestion.WithTokenSource(tokenSource),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Walk a collection using the iterator; pagination is transparent
//	for product, err := range client.GetCollection(ctx, "products") {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(product.ID())
//	}
package ingestion

import (
	"net/http"
	"time"

	"github.com/bcpartner/go-ingestion/internal/api"
	"github.com/bcpartner/go-ingestion/internal/auth"
)

// DefaultBaseURL is the public endpoint of the Partner Center Ingestion API.
const DefaultBaseURL = "https://api.partner.microsoft.com/v1.0/ingestion"

// Default configuration values.
const defaultTimeout = 30 * time.Second

// Client is the Ingestion API client.
type Client struct {
	// Products provides typed access to product and submission resources.
	Products ProductService

	transport *api.Transport
	telemetry Telemetry
	maxPages  int
}

// NewClient creates a new Ingestion API client with the given options.
// WithTokenSource is required; everything else has defaults.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := &clientConfig{
		baseURL: DefaultBaseURL,
		timeout: defaultTimeout,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.tokenSource == nil {
		return nil, ErrNoTokenSource
	}

	creds := &auth.Credentials{
		Source: cfg.tokenSource,
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.timeout,
		}
	}

	transport, err := api.NewTransport(cfg.baseURL, creds, httpClient)
	if err != nil {
		return nil, err
	}

	if cfg.userAgent != "" {
		transport.UserAgent = cfg.userAgent
	}
	transport.Logger = cfg.logger

	telemetry := cfg.telemetry
	if telemetry == nil {
		telemetry = nopTelemetry{}
	}

	client := &Client{
		transport: transport,
		telemetry: telemetry,
		maxPages:  cfg.maxPages,
	}

	// Initialize services
	client.Products = newProductService(client)

	return client, nil
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.transport.BaseURL.String()
}
