package telemetry_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingestion "github.com/bcpartner/go-ingestion"
	"github.com/bcpartner/go-ingestion/telemetry"
)

func TestTrackerScopes(t *testing.T) {
	var _ ingestion.Telemetry = telemetry.NewTracker()

	t.Run("correlation IDs are fresh UUIDs", func(t *testing.T) {
		tracker := telemetry.NewTracker()

		_, first := tracker.StartOperation(context.Background(), "ingestion.Get")
		defer first.Close()
		_, second := tracker.StartOperation(context.Background(), "ingestion.Get")
		defer second.Close()

		_, err := uuid.Parse(first.CorrelationID())
		require.NoError(t, err)
		assert.NotEqual(t, first.CorrelationID(), second.CorrelationID())
	})

	t.Run("safe without a tracer provider", func(t *testing.T) {
		tracker := telemetry.NewTracker()

		ctx, scope := tracker.StartOperation(context.Background(), "ingestion.GetCollection")
		require.NotNil(t, ctx)

		scope.TrackTrace("page fetched", "pages", 3)
		scope.TrackException(errors.New("backend down"))
		scope.TrackException(nil)
		scope.Close()
	})
}

func TestTrackerLoggerMirror(t *testing.T) {
	t.Run("exceptions log at error level", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := telemetry.NewTracker(
			telemetry.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

		_, scope := tracker.StartOperation(context.Background(), "ingestion.Put")
		scope.TrackException(errors.New("etag mismatch"))
		scope.Close()

		out := buf.String()
		assert.Contains(t, out, "operation failed")
		assert.Contains(t, out, "ingestion.Put")
		assert.Contains(t, out, "etag mismatch")
		assert.Contains(t, out, "correlation_id=")
	})

	t.Run("traces log at debug level", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := telemetry.NewTracker(
			telemetry.WithLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}))))

		_, scope := tracker.StartOperation(context.Background(), "ingestion.GetCollection")
		scope.TrackTrace("collection exhausted", "pages", 2)
		scope.Close()

		assert.Contains(t, buf.String(), "collection exhausted")
		assert.Contains(t, buf.String(), "pages=2")
	})

	t.Run("traces stay silent at default level", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := telemetry.NewTracker(
			telemetry.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

		_, scope := tracker.StartOperation(context.Background(), "ingestion.Get")
		scope.TrackTrace("request completed")
		scope.Close()

		assert.Empty(t, buf.String())
	})
}
