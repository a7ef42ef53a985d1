package tracker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"uplink/internal/cookies"
	"uplink/internal/dedupe"
	"uplink/internal/release"
	"uplink/internal/services"
)

// SessionBound is implemented by adapters that authenticate with browser
// cookies instead of an API key. The orchestrator validates the session
// once per run, after the pre-check passes and before any capability runs.
type SessionBound interface {
	EnsureSession(ctx context.Context) error
	Close() error
}

// HDT is the adapter for the cookie authenticated HD-Torrents style sites:
// no JSON API, form uploads, and duplicate search by scraping the browse
// page.
type HDT struct {
	Base
	session *cookies.Session
}

// NewHDT builds the cookie backed adapter. The session's HTTP client
// replaces the shared one so every request carries the jar.
func NewHDT(id string, env Env) *HDT {
	session := cookies.NewSession(id, env.Tracker, env.Config, env.Logger)
	env.Client = session.Client()
	return &HDT{Base: NewBase(id, env), session: session}
}

// EnsureSession loads the exported cookie file and validates it against
// the configured check. The jar is only written back after validation
// succeeds.
func (h *HDT) EnsureSession(ctx context.Context) error {
	switch h.session.State() {
	case cookies.Validated, cookies.Saved:
		return nil
	}
	if err := h.session.Load(); err != nil {
		return err
	}
	return h.session.Validate(ctx)
}

// Close releases nothing today but keeps the interface symmetric for
// adapters that will hold live resources.
func (h *HDT) Close() error { return nil }

// hdtCategories folds the site's flat category list back onto the
// metadata pair that selects it. HD-Torrents has no separate type or
// resolution id: "Movie/Remux" and "TV Show/Encode" are categories of
// their own.
var hdtCategories = map[string]string{
	"movie/disc":   "15",
	"movie/remux":  "40",
	"movie/encode": "25",
	"movie/web":    "64",
	"tv/disc":      "59",
	"tv/remux":     "62",
	"tv/encode":    "30",
	"tv/web":       "65",
}

func (h *HDT) CategoryID(meta *release.Meta) (string, error) {
	key := strings.ToLower(meta.Category) + "/" + strings.ToLower(meta.Type)
	if id, ok := hdtCategories[key]; ok {
		return id, nil
	}
	return h.Base.CategoryID(meta)
}

// TypeID is unused on this site. The type is part of the category.
func (h *HDT) TypeID(meta *release.Meta) (string, error) { return "", nil }

// ResolutionID is unused on this site for the same reason.
func (h *HDT) ResolutionID(meta *release.Meta) (string, error) { return "", nil }

var hdtSearchRules = dedupe.ScrapeRules{
	Row:       "tr.mainblockcontent",
	Name:      "a.torrentname",
	Link:      "a.torrentname",
	Size:      "td.size",
	Trumpable: "span.trumpable",
}

// SearchDuplicates scrapes the browse page for the release title.
func (h *HDT) SearchDuplicates(ctx context.Context, meta *release.Meta) ([]dedupe.Candidate, error) {
	endpoint := strings.TrimRight(h.Env().Tracker.BaseURL, "/") + "/torrents.php?" + url.Values{
		"search":  {meta.Title},
		"active":  {"0"},
		"options": {"2"},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, h.ID(), "dedupe", "build search request", err)
	}
	resp, err := h.Env().Client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, h.ID(), "dedupe", "search request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransient, h.ID(), "dedupe", fmt.Sprintf("search returned status %d", resp.StatusCode), nil)
	}
	candidates, err := dedupe.ScrapeCandidates(resp.Body, hdtSearchRules)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, h.ID(), "dedupe", "parse search page", err)
	}
	return candidates, nil
}

var hdtDetailsLink = regexp.MustCompile(`details\.php\?id=(\d+)`)

// Submit posts the upload form the way a browser would and scrapes the
// response for the details link. The site answers uploads with a normal
// HTML page, so a response with neither a details link nor a recognizable
// error banner is ambiguous.
func (h *HDT) Submit(ctx context.Context, meta *release.Meta, payload Payload) (Receipt, error) {
	endpoint := strings.TrimRight(h.Env().Tracker.BaseURL, "/") + "/upload.php"

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := attachFile(form, "torrent", payload.TorrentPath); err != nil {
		return Receipt{}, services.Wrap(services.ErrValidation, h.ID(), "upload", "attach torrent", err)
	}
	fields := map[string]string{
		"name":     payload.Name,
		"info":     payload.Description,
		"techinfo": payload.MediaInfo,
		"category": payload.CategoryID,
	}
	if token := h.session.Token(); token != "" {
		fields["csrf_token"] = token
	}
	for key, values := range payload.Extra {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	for key, value := range fields {
		if err := form.WriteField(key, value); err != nil {
			return Receipt{}, services.Wrap(services.ErrTransient, h.ID(), "upload", "encode form field", err)
		}
	}
	if err := form.Close(); err != nil {
		return Receipt{}, services.Wrap(services.ErrTransient, h.ID(), "upload", "finalize multipart body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return Receipt{}, services.Wrap(services.ErrTransient, h.ID(), "upload", "build upload request", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := h.Env().Client.Do(req)
	if err != nil {
		return Receipt{}, services.Wrap(services.ErrTransient, h.ID(), "upload", "upload request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Receipt{}, services.Wrap(services.ErrTransient, h.ID(), "upload", "read upload response", err)
	}
	page := string(raw)

	if resp.StatusCode == http.StatusForbidden || strings.Contains(page, "login.php") {
		return Receipt{}, services.Wrap(services.ErrAuth, h.ID(), "upload", "session rejected during upload", nil)
	}
	if match := hdtDetailsLink.FindStringSubmatch(page); match != nil {
		return Receipt{
			TorrentID:   match[1],
			DetailsURL:  strings.TrimRight(h.Env().Tracker.BaseURL, "/") + "/details.php?id=" + match[1],
			AnnounceURL: h.Env().Tracker.AnnounceURL,
			RawBody:     raw,
		}, nil
	}
	for _, marker := range []string{"already exists", "This torrent already", "error"} {
		if strings.Contains(strings.ToLower(page), strings.ToLower(marker)) {
			return Receipt{}, services.Wrap(services.ErrValidation, h.ID(), "upload", "site rejected the upload", nil)
		}
	}
	return Receipt{Ambiguous: true, RawBody: raw}, nil
}
