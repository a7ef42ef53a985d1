package services

import "context"

type contextKey string

const (
	trackerKey   contextKey = "tracker"
	releaseKey   contextKey = "release"
	requestIDKey contextKey = "request_id"
)

// WithTracker annotates context with the tracker identifier being processed.
func WithTracker(ctx context.Context, tracker string) context.Context {
	if tracker == "" {
		return ctx
	}
	return context.WithValue(ctx, trackerKey, tracker)
}

// TrackerFromContext returns the tracker identifier if present.
func TrackerFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(trackerKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRelease annotates context with the release title being processed.
func WithRelease(ctx context.Context, release string) context.Context {
	if release == "" {
		return ctx
	}
	return context.WithValue(ctx, releaseKey, release)
}

// ReleaseFromContext returns the release title if present.
func ReleaseFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(releaseKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
