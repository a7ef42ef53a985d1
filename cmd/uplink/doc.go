// Package main hosts the uplink CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into upload
// runs against configured trackers, run history queries, duplicate checks,
// and configuration scaffolding. It centralizes configuration resolution,
// structured logging setup, and run-store access so subcommands can focus on
// user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
