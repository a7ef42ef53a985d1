// Package services defines the error taxonomy and context plumbing shared by
// every tracker-facing component. Errors are tagged with sentinel markers so
// the orchestrator can classify a failure without inspecting message text.
package services
