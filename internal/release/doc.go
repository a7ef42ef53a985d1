// Package release defines the shared release metadata record, the
// per-tracker status entries, and the crash-recovery snapshot format.
//
// The record is mutated without locks. That is safe only because the
// orchestrator confines mutation to a single goroutine after each tracker's
// capability join; adapters treat every field outside their allow-list
// (Name, Description, own status entry) as read-only.
package release
