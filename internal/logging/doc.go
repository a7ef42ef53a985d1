// Package logging wraps log/slog with uplink's console and JSON handlers,
// typed attribute helpers, and standardized field names shared across the
// upload pipeline.
package logging
