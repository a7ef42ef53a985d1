// Package upload drives a prepared release through every configured
// tracker: gate, session, duplicate search, capability gathering, torrent
// derivation, submission, and status finalization. Each tracker's outcome
// is terminal and written exactly once; failures on one tracker never stop
// the others.
package upload
