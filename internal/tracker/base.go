package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"uplink/internal/config"
	"uplink/internal/dedupe"
	"uplink/internal/describe"
	"uplink/internal/logging"
	"uplink/internal/release"
	"uplink/internal/services"
)

// Env carries the shared collaborators an adapter needs for one run.
type Env struct {
	Tracker  config.Tracker
	Config   *config.Config
	Client   *http.Client
	Composer *describe.Composer
	Logger   *slog.Logger
}

// Base supplies the default behavior for every capability. Concrete
// adapters embed Base and override only what their site does differently.
type Base struct {
	id  string
	env Env
}

// NewBase builds the shared capability defaults for the given tracker id.
func NewBase(id string, env Env) Base {
	if env.Client == nil {
		env.Client = &http.Client{}
	}
	if env.Logger == nil {
		env.Logger = logging.NewNop()
	}
	return Base{id: id, env: env}
}

func (b *Base) ID() string { return b.id }

// Env exposes the run collaborators to embedding adapters.
func (b *Base) Env() Env { return b.env }

// PreCheck passes everything by default.
func (b *Base) PreCheck(ctx context.Context, meta *release.Meta) Gate {
	return ProceedGate()
}

// Name composes the dotted release name from the metadata. Trackers with
// site specific naming rules override this.
func (b *Base) Name(ctx context.Context, meta *release.Meta) (string, error) {
	if meta.Name != "" {
		return meta.Name, nil
	}
	parts := make([]string, 0, 4)
	if meta.Title != "" {
		parts = append(parts, strings.ReplaceAll(meta.Title, " ", "."))
	}
	if meta.Year != 0 {
		parts = append(parts, fmt.Sprintf("%d", meta.Year))
	}
	if meta.Resolution != "" {
		parts = append(parts, meta.Resolution)
	}
	if meta.Type != "" {
		parts = append(parts, meta.Type)
	}
	name := strings.Join(parts, ".")
	if meta.ReleaseGroup != "" {
		name += "-" + meta.ReleaseGroup
	}
	if name == "" {
		return "", services.Wrap(services.ErrValidation, b.id, "name", "release metadata has no usable name parts", nil)
	}
	return name, nil
}

// Description delegates to the shared composer with the tracker's header
// override applied.
func (b *Base) Description(ctx context.Context, meta *release.Meta) (string, error) {
	if b.env.Composer == nil {
		return meta.Description, nil
	}
	return b.env.Composer.Compose(ctx, meta, describe.Options{
		Tracker:   b.id,
		Header:    b.env.Tracker.Header,
		Signature: b.env.Config.Description.Signature,
	})
}

// MediaInfo returns the captured technical report verbatim.
func (b *Base) MediaInfo(ctx context.Context, meta *release.Meta) (string, error) {
	return meta.MediaInfo, nil
}

func (b *Base) CategoryID(meta *release.Meta) (string, error) {
	return "", services.Wrap(services.ErrConfiguration, b.id, "category", fmt.Sprintf("no category mapping for %q", meta.Category), nil)
}

func (b *Base) TypeID(meta *release.Meta) (string, error) {
	return "", services.Wrap(services.ErrConfiguration, b.id, "type", fmt.Sprintf("no type mapping for %q", meta.Type), nil)
}

func (b *Base) ResolutionID(meta *release.Meta) (string, error) {
	return "", services.Wrap(services.ErrConfiguration, b.id, "resolution", fmt.Sprintf("no resolution mapping for %q", meta.Resolution), nil)
}

// ExtraData contributes the flags every site understands. Adapters merge
// their own fields on top.
func (b *Base) ExtraData(ctx context.Context, meta *release.Meta) (url.Values, error) {
	extra := url.Values{}
	if b.env.Tracker.Anonymous {
		extra.Set("anonymous", "1")
	}
	if b.env.Tracker.Internal {
		extra.Set("internal", "1")
	}
	if b.env.Tracker.PersonalRelease {
		extra.Set("personal_release", "1")
	}
	return extra, nil
}

// SearchDuplicates reports no candidates by default. Sites with a search
// API or a scrapeable browse page override this.
func (b *Base) SearchDuplicates(ctx context.Context, meta *release.Meta) ([]dedupe.Candidate, error) {
	return nil, nil
}

// Submit has no default: every adapter must know its own upload protocol.
func (b *Base) Submit(ctx context.Context, meta *release.Meta, payload Payload) (Receipt, error) {
	return Receipt{}, services.Wrap(services.ErrConfiguration, b.id, "submit", "tracker has no upload implementation", nil)
}
