package ingestion_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	ingestion "github.com/bcpartner/go-ingestion"
)

// fakeTelemetry records every scope the client opens.
type fakeTelemetry struct {
	mu     sync.Mutex
	scopes []*fakeScope
}

func newFakeTelemetry() *fakeTelemetry {
	return &fakeTelemetry{}
}

func (f *fakeTelemetry) StartOperation(ctx context.Context, operation string) (context.Context, ingestion.Scope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	scope := &fakeScope{
		operation:     operation,
		correlationID: fmt.Sprintf("corr-%d", len(f.scopes)+1),
	}
	f.scopes = append(f.scopes, scope)
	return ctx, scope
}

func (f *fakeTelemetry) lastScope(t *testing.T) *fakeScope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.scopes, "no telemetry scope was opened")
	return f.scopes[len(f.scopes)-1]
}

func (f *fakeTelemetry) scopeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scopes)
}

type fakeScope struct {
	mu            sync.Mutex
	operation     string
	correlationID string
	traces        []string
	exceptions    []error
	closed        bool
}

func (s *fakeScope) CorrelationID() string {
	return s.correlationID
}

func (s *fakeScope) TrackTrace(message string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces = append(s.traces, message)
}

func (s *fakeScope) TrackException(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exceptions = append(s.exceptions, err)
}

func (s *fakeScope) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeScope) exceptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.exceptions)
}

func (s *fakeScope) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// setupTestServer starts a test API server and returns a client pointed at
// it together with the telemetry recorder wired into the client.
func setupTestServer(t *testing.T, handler http.HandlerFunc, opts ...ingestion.ClientOption) (*ingestion.Client, *fakeTelemetry) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tel := newFakeTelemetry()
	base := []ingestion.ClientOption{
		ingestion.WithTokenSource(staticTokens()),
		ingestion.WithBaseURL(server.URL),
		ingestion.WithTelemetry(tel),
	}
	client, err := ingestion.NewClient(append(base, opts...)...)
	require.NoError(t, err)
	return client, tel
}

type erroringTokenSource struct{}

func (erroringTokenSource) Token() (*oauth2.Token, error) {
	return nil, errors.New("token endpoint unreachable")
}

func TestGet(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client, tel := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/products/prod-1", r.URL.Path)
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Accept"))

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"prod-1","name":"My App","@odata.etag":"W/\"abc\""}`)
		})

		res, err := client.Get(context.Background(), "products/prod-1")
		require.NoError(t, err)
		assert.Equal(t, "prod-1", res.ID())
		assert.Equal(t, `W/"abc"`, res.ETag())
		assert.Equal(t, "My App", res.GetString("name"))

		scope := tel.lastScope(t)
		assert.Equal(t, "ingestion.Get", scope.operation)
		assert.Zero(t, scope.exceptionCount())
		assert.True(t, scope.isClosed())
	})

	t.Run("sends query parameters and custom headers", func(t *testing.T) {
		client, _ := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "99", r.URL.Query().Get("$top"))
			assert.Equal(t, "custom-value", r.Header.Get("X-Custom"))
			fmt.Fprint(w, `{"id":"prod-1"}`)
		})

		_, err := client.Get(context.Background(), "products/prod-1",
			ingestion.WithQuery("$top", "99"),
			ingestion.WithHeader("X-Custom", "custom-value"),
		)
		require.NoError(t, err)
	})

	t.Run("injects scope correlation ID", func(t *testing.T) {
		client, _ := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "corr-1", r.Header.Get("MS-CorrelationId"))
			fmt.Fprint(w, `{"id":"prod-1"}`)
		})

		_, err := client.Get(context.Background(), "products/prod-1")
		require.NoError(t, err)
	})

	t.Run("explicit correlation ID wins over scope", func(t *testing.T) {
		client, _ := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "caller-supplied", r.Header.Get("MS-CorrelationId"))
			fmt.Fprint(w, `{"id":"prod-1"}`)
		})

		_, err := client.Get(context.Background(), "products/prod-1",
			ingestion.WithCorrelationID("caller-supplied"))
		require.NoError(t, err)
	})

	t.Run("not found is reported once and re-raised", func(t *testing.T) {
		client, tel := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"code":"notFound","message":"no such product"}`)
		})

		_, err := client.Get(context.Background(), "products/missing")
		require.Error(t, err)

		var notFound *ingestion.NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, http.StatusNotFound, notFound.StatusCode)

		scope := tel.lastScope(t)
		assert.Equal(t, 1, scope.exceptionCount())
		assert.True(t, scope.isClosed())
	})
}

func TestPost(t *testing.T) {
	t.Run("sends body and decodes response", func(t *testing.T) {
		client, tel := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/products", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "New App", body["name"])

			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":"prod-9","name":"New App"}`)
		})

		res, err := client.Post(context.Background(), "products", map[string]any{"name": "New App"})
		require.NoError(t, err)
		assert.Equal(t, "prod-9", res.ID())

		assert.Equal(t, "ingestion.Post", tel.lastScope(t).operation)
	})

	t.Run("bad request surfaces validation details", func(t *testing.T) {
		client, tel := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"code":"badRequest","message":"name missing","details":[{"code":"required","message":"name is required","target":"name"}]}`)
		})

		_, err := client.Post(context.Background(), "products", map[string]any{})
		require.Error(t, err)

		var validation *ingestion.ValidationError
		require.ErrorAs(t, err, &validation)
		require.Len(t, validation.Details, 1)
		assert.Equal(t, "name", validation.Details[0].Target)

		assert.Equal(t, 1, tel.lastScope(t).exceptionCount())
	})
}

func TestPut(t *testing.T) {
	t.Run("sends etag as If-Match", func(t *testing.T) {
		client, _ := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, `W/"etag-7"`, r.Header.Get("If-Match"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, `W/"etag-7"`, body["@odata.etag"])

			fmt.Fprint(w, `{"id":"prod-1","@odata.etag":"W/\"etag-8\""}`)
		})

		res, err := client.Put(context.Background(), "products/prod-1", map[string]any{
			"id":          "prod-1",
			"name":        "Renamed",
			"@odata.etag": `W/"etag-7"`,
		})
		require.NoError(t, err)
		assert.Equal(t, `W/"etag-8"`, res.ETag())
	})

	t.Run("struct bodies carry their etag too", func(t *testing.T) {
		client, _ := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, `W/"p-etag"`, r.Header.Get("If-Match"))
			fmt.Fprint(w, `{"id":"prod-1"}`)
		})

		product := &ingestion.Product{
			ID:           "prod-1",
			ResourceType: ingestion.ResourceTypeBusinessCentral,
			Name:         "My App",
			ETag:         `W/"p-etag"`,
		}
		_, err := client.Put(context.Background(), "products/prod-1", product)
		require.NoError(t, err)
	})

	t.Run("body without etag fails before any request", func(t *testing.T) {
		client, tel := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		_, err := client.Put(context.Background(), "products/prod-1", map[string]any{"id": "prod-1"})
		require.Error(t, err)

		var validation *ingestion.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Contains(t, validation.Message, "@odata.etag")
		assert.Zero(t, tel.scopeCount())
	})

	t.Run("non-object body is rejected", func(t *testing.T) {
		client, _ := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		_, err := client.Put(context.Background(), "products/prod-1", []string{"not", "an", "object"})
		require.Error(t, err)

		var validation *ingestion.ValidationError
		assert.ErrorAs(t, err, &validation)
	})
}

func TestDelete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client, tel := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/products/prod-1", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		})

		err := client.Delete(context.Background(), "products/prod-1")
		require.NoError(t, err)

		scope := tel.lastScope(t)
		assert.Equal(t, "ingestion.Delete", scope.operation)
		assert.True(t, scope.isClosed())
	})

	t.Run("server error is typed", func(t *testing.T) {
		client, _ := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"message":"boom"}`)
		})

		err := client.Delete(context.Background(), "products/prod-1")
		require.Error(t, err)

		var serverErr *ingestion.ServerError
		assert.ErrorAs(t, err, &serverErr)
	})
}

func TestTokenRenewal(t *testing.T) {
	t.Run("renewal failure stops the request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected when token renewal fails")
		}))
		t.Cleanup(server.Close)

		tel := newFakeTelemetry()
		client, err := ingestion.NewClient(
			ingestion.WithTokenSource(erroringTokenSource{}),
			ingestion.WithBaseURL(server.URL),
			ingestion.WithTelemetry(tel),
		)
		require.NoError(t, err)

		_, err = client.Get(context.Background(), "products")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "renewing access token")

		scope := tel.lastScope(t)
		assert.Equal(t, 1, scope.exceptionCount())
		assert.True(t, scope.isClosed())
	})
}

func TestRateLimit(t *testing.T) {
	client, _ := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"message":"slow down"}`)
	})

	_, err := client.Get(context.Background(), "products")
	require.Error(t, err)

	var rateLimit *ingestion.RateLimitError
	require.ErrorAs(t, err, &rateLimit)
	assert.Equal(t, float64(30), rateLimit.RetryAfter.Seconds())
}

func TestRequestLogging(t *testing.T) {
	t.Run("logs method and URL", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		client, _ := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"id":"prod-1"}`)
		}, ingestion.WithLogger(logger))

		_, err := client.Get(context.Background(), "products/prod-1")
		require.NoError(t, err)

		assert.Contains(t, buf.String(), "ingestion api request")
		assert.Contains(t, buf.String(), "method=GET")
	})

	t.Run("WithSilent suppresses logging", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		client, _ := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"id":"prod-1"}`)
		}, ingestion.WithLogger(logger))

		_, err := client.Get(context.Background(), "products/prod-1", ingestion.WithSilent())
		require.NoError(t, err)

		assert.Empty(t, buf.String())
	})
}
