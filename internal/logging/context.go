package logging

import (
	"context"
	"log/slog"

	"uplink/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldTracker is the standardized structured logging key for tracker identifiers.
	FieldTracker = "tracker"
	// FieldRelease is the standardized structured logging key for release titles.
	FieldRelease = "release"
	// FieldOperation names the capability or pipeline operation being performed.
	FieldOperation = "operation"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType tags machine-filterable lifecycle events.
	FieldEventType = "event_type"
	// FieldErrorHint carries remediation guidance alongside an error record.
	FieldErrorHint = "error_hint"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if tracker, ok := services.TrackerFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTracker, tracker))
	}
	if release, ok := services.ReleaseFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRelease, release))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
