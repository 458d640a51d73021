package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bcpartner/go-ingestion/internal/api"
)

const correlationIDHeader = "MS-CorrelationId"

// Get retrieves a single resource.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (Resource, error) {
	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result Resource
	err := c.doScoped(ctx, "ingestion.Get", &api.Request{
		Method:  http.MethodGet,
		Path:    path,
		Query:   reqCfg.query,
		Headers: reqCfg.headers,
		Silent:  reqCfg.silent,
	}, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Post creates a resource from a JSON-marshalable body and returns the
// server's representation of what was created.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (Resource, error) {
	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result Resource
	err := c.doScoped(ctx, "ingestion.Post", &api.Request{
		Method:  http.MethodPost,
		Path:    path,
		Query:   reqCfg.query,
		Body:    body,
		Headers: reqCfg.headers,
		Silent:  reqCfg.silent,
	}, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Put replaces a resource. The body must carry an "@odata.etag" field from a
// prior read; its value is sent as the If-Match header so the server can
// reject updates against stale state. A body without an etag fails with a
// ValidationError before any request is made.
func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (Resource, error) {
	raw, etag, err := encodeWithETag(body)
	if err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)
	reqCfg.headers.Set("If-Match", etag)

	var result Resource
	err = c.doScoped(ctx, "ingestion.Put", &api.Request{
		Method:  http.MethodPut,
		Path:    path,
		Query:   reqCfg.query,
		Body:    raw,
		Headers: reqCfg.headers,
		Silent:  reqCfg.silent,
	}, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a resource.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) error {
	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	return c.doScoped(ctx, "ingestion.Delete", &api.Request{
		Method:  http.MethodDelete,
		Path:    path,
		Query:   reqCfg.query,
		Headers: reqCfg.headers,
		Silent:  reqCfg.silent,
	}, nil)
}

// doScoped executes one request inside its own telemetry scope. The scope
// always closes; a failure is reported into it exactly once and then
// returned unchanged.
func (c *Client) doScoped(ctx context.Context, operation string, req *api.Request, result any) error {
	ctx, scope := c.telemetry.StartOperation(ctx, operation)
	defer scope.Close()

	if err := c.do(ctx, scope, req, result); err != nil {
		scope.TrackException(err)
		return err
	}
	scope.TrackTrace("request completed", "method", req.Method, "path", req.Path)
	return nil
}

// do performs the HTTP round-trip and turns non-2xx responses into typed
// errors. Telemetry bookkeeping stays with the caller, which owns the scope.
func (c *Client) do(ctx context.Context, scope Scope, req *api.Request, result any) error {
	if id := scope.CorrelationID(); id != "" && req.Headers.Get(correlationIDHeader) == "" {
		if req.Headers == nil {
			req.Headers = make(http.Header)
		}
		req.Headers.Set(correlationIDHeader, id)
	}

	resp, err := c.transport.DoJSON(ctx, req, result)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return parseError(resp.StatusCode, resp.Body, resp.Headers)
	}
	return nil
}

// encodeWithETag marshals an update body once and extracts its
// "@odata.etag" value for the If-Match header.
func encodeWithETag(body any) (json.RawMessage, string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("ingestion: marshaling request body: %w", err)
	}

	var probe struct {
		ETag string `json:"@odata.etag"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, "", &ValidationError{APIError: APIError{Message: "update body must be a JSON object"}}
	}
	if probe.ETag == "" {
		return nil, "", &ValidationError{APIError: APIError{Message: "update body must carry " + ETagKey}}
	}
	return data, probe.ETag, nil
}
