package ingestion

import "context"

// Telemetry receives operation lifecycle events from the client. Every API
// operation opens exactly one scope, reports at most one exception into it,
// and always closes it, also when the operation fails or an iteration is
// abandoned early.
//
// Implementations must tolerate concurrent use; the client may serve many
// goroutines at once.
type Telemetry interface {
	// StartOperation opens a scope for one API operation. The returned
	// context carries the scope's trace state and is used for the
	// operation's HTTP round-trips.
	StartOperation(ctx context.Context, operation string) (context.Context, Scope)
}

// Scope is one operation's telemetry bookkeeping.
type Scope interface {
	// CorrelationID identifies this scope. When non-empty it is sent as the
	// MS-CorrelationId request header unless the caller set one explicitly.
	CorrelationID() string

	// TrackTrace records a diagnostic message with optional slog-style
	// key/value pairs.
	TrackTrace(message string, args ...any)

	// TrackException records a failure. The client reports each failed
	// operation once and then returns the error to the caller unchanged.
	TrackException(err error)

	// Close ends the scope.
	Close()
}

// nopTelemetry discards all events. It is the default when no collaborator
// is configured.
type nopTelemetry struct{}

func (nopTelemetry) StartOperation(ctx context.Context, _ string) (context.Context, Scope) {
	return ctx, nopScope{}
}

type nopScope struct{}

func (nopScope) CorrelationID() string     { return "" }
func (nopScope) TrackTrace(string, ...any) {}
func (nopScope) TrackException(error)      {}
func (nopScope) Close()                    {}
