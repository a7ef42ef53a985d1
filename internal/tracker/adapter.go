package tracker

import (
	"context"
	"net/url"

	"uplink/internal/dedupe"
	"uplink/internal/release"
)

// Action is the outcome class of a pre-check gate.
type Action int

const (
	// Proceed lets the orchestrator continue with the tracker.
	Proceed Action = iota
	// Skip marks the tracker skip_upload before any network call is made.
	Skip
	// Fatal aborts the tracker's processing with a contract error.
	Fatal
)

// Gate is the typed result of an adapter pre-check. Skips are ordinary
// values, not errors: a tracker that rejects a release on policy grounds is
// a normal outcome of every batch.
type Gate struct {
	Action Action
	Reason string
	Err    error
}

// ProceedGate allows the upload to continue.
func ProceedGate() Gate { return Gate{Action: Proceed} }

// SkipGate rejects the release before any network call, with an operator
// facing reason.
func SkipGate(reason string) Gate { return Gate{Action: Skip, Reason: reason} }

// FatalGate aborts this tracker with a contract error.
func FatalGate(err error) Gate { return Gate{Action: Fatal, Err: err} }

// Payload is the merged per-tracker upload request the orchestrator
// assembles from the capability results.
type Payload struct {
	Name         string
	Description  string
	MediaInfo    string
	CategoryID   string
	TypeID       string
	ResolutionID string
	Extra        url.Values
	TorrentPath  string
	NFOPath      string
}

// Receipt is the interpreted upload response.
//
// Ambiguous receipts represent responses without an unambiguous success
// marker: some tracker protocols cannot be asked "did this succeed" twice
// without side effects, so the ambiguity is surfaced as an explicit state
// instead of being collapsed into success or failure.
type Receipt struct {
	TorrentID   string
	DetailsURL  string
	AnnounceURL string // live announce URL to stamp into the torrent, when known
	Ambiguous   bool
	RawBody     []byte
}

// Adapter is the per-tracker capability interface.
//
// Implementations override only the capabilities their site needs; the rest
// fall through to the shared Base. Capability methods must be pure with
// respect to other trackers: they may mutate the release name, description,
// and their own status entry, nothing else.
type Adapter interface {
	ID() string

	// PreCheck gates the tracker before any network call.
	PreCheck(ctx context.Context, meta *release.Meta) Gate

	Name(ctx context.Context, meta *release.Meta) (string, error)
	Description(ctx context.Context, meta *release.Meta) (string, error)
	MediaInfo(ctx context.Context, meta *release.Meta) (string, error)
	CategoryID(meta *release.Meta) (string, error)
	TypeID(meta *release.Meta) (string, error)
	ResolutionID(meta *release.Meta) (string, error)
	ExtraData(ctx context.Context, meta *release.Meta) (url.Values, error)

	SearchDuplicates(ctx context.Context, meta *release.Meta) ([]dedupe.Candidate, error)

	Submit(ctx context.Context, meta *release.Meta, payload Payload) (Receipt, error)
}
