// Package telemetry provides an OpenTelemetry-backed implementation of the
// client's Telemetry contract. Each operation scope becomes one span; traces
// and exceptions become span events. Without a tracer provider installed in
// the host process the spans are no-ops, so a Tracker is safe to wire
// unconditionally.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	ingestion "github.com/bcpartner/go-ingestion"
)

const tracerName = "github.com/bcpartner/go-ingestion"

// Tracker emits one span per client operation.
type Tracker struct {
	tracer oteltrace.Tracer
	logger *slog.Logger
}

var _ ingestion.Telemetry = (*Tracker)(nil)

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger mirrors scope events to a structured logger in addition to the
// span. Traces log at Debug, exceptions at Error.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithTracerProvider selects the tracer provider. The global provider is
// used otherwise.
func WithTracerProvider(tp oteltrace.TracerProvider) Option {
	return func(t *Tracker) {
		t.tracer = tp.Tracer(tracerName)
	}
}

// NewTracker creates a Tracker with the given options.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartOperation opens one scope: a span plus a fresh correlation ID that
// the client forwards as the MS-CorrelationId header.
func (t *Tracker) StartOperation(ctx context.Context, operation string) (context.Context, ingestion.Scope) {
	correlationID := uuid.NewString()
	ctx, span := t.tracer.Start(ctx, operation, oteltrace.WithAttributes(
		attribute.String("ingestion.operation", operation),
		attribute.String("ingestion.correlation_id", correlationID),
	))
	return ctx, &scope{
		span:          span,
		operation:     operation,
		correlationID: correlationID,
		logger:        t.logger,
	}
}

// scope implements ingestion.Scope on top of one span.
type scope struct {
	span          oteltrace.Span
	operation     string
	correlationID string
	logger        *slog.Logger
}

func (s *scope) CorrelationID() string {
	return s.correlationID
}

func (s *scope) TrackTrace(message string, args ...any) {
	s.span.AddEvent(message, oteltrace.WithAttributes(eventAttrs(args)...))
	if s.logger != nil {
		s.logger.Debug(message, s.logArgs(args)...)
	}
}

func (s *scope) TrackException(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
	if s.logger != nil {
		s.logger.Error("operation failed", s.logArgs([]any{"error", err})...)
	}
}

func (s *scope) Close() {
	s.span.End()
}

func (s *scope) logArgs(args []any) []any {
	return append([]any{
		"operation", s.operation,
		"correlation_id", s.correlationID,
	}, args...)
}

// eventAttrs converts slog-style key/value pairs into span attributes.
// Values stringify; keys that are not strings are skipped.
func eventAttrs(args []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, attribute.String(key, fmt.Sprint(args[i+1])))
	}
	return attrs
}
