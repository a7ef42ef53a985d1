// Package tracker defines the per-site capability contract and the
// adapters implementing it.
//
// An adapter answers a fixed set of questions about a release: whether to
// upload it at all, what to call it, how to describe it, which site ids to
// file it under, and how to submit and interpret the upload request.
// Everything else (torrent derivation, screenshots, persistence, status)
// lives in the shared engine, so a new tracker is one table for a UNIT3D
// site or one small file for a bespoke one.
package tracker
