// Package runstore persists upload run history in SQLite: one row per
// orchestrator invocation plus one row per tracker outcome. The status and
// resume commands read it; the orchestrator writes through the Recorder
// interface.
package runstore
