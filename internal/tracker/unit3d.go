package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"uplink/internal/dedupe"
	"uplink/internal/release"
	"uplink/internal/services"
)

// Table holds the per-site id mappings a UNIT3D instance uses. Keys are
// the normalized metadata values (lowercase category and type, resolution
// as written).
type Table struct {
	Categories   map[string]string
	Types        map[string]string
	Resolutions  map[string]string
	Regions      map[string]string
	Distributors map[string]string
	BannedGroups []string
}

// UNIT3D is the shared adapter for trackers running the UNIT3D codebase.
// The sites differ only in their id tables and banned group lists, so one
// implementation parameterized by Table covers all of them.
type UNIT3D struct {
	Base
	Table Table
}

// NewUNIT3D builds a UNIT3D adapter for the given tracker id and table.
func NewUNIT3D(id string, env Env, table Table) *UNIT3D {
	return &UNIT3D{Base: NewBase(id, env), Table: table}
}

// PreCheck rejects banned release groups before any network call.
func (u *UNIT3D) PreCheck(ctx context.Context, meta *release.Meta) Gate {
	for _, group := range u.Table.BannedGroups {
		if strings.EqualFold(group, meta.ReleaseGroup) {
			return SkipGate(fmt.Sprintf("release group %s is banned on %s", meta.ReleaseGroup, u.ID()))
		}
	}
	return ProceedGate()
}

func (u *UNIT3D) CategoryID(meta *release.Meta) (string, error) {
	if id, ok := u.Table.Categories[strings.ToLower(meta.Category)]; ok {
		return id, nil
	}
	return u.Base.CategoryID(meta)
}

func (u *UNIT3D) TypeID(meta *release.Meta) (string, error) {
	if id, ok := u.Table.Types[strings.ToLower(meta.Type)]; ok {
		return id, nil
	}
	return u.Base.TypeID(meta)
}

func (u *UNIT3D) ResolutionID(meta *release.Meta) (string, error) {
	if id, ok := u.Table.Resolutions[meta.Resolution]; ok {
		return id, nil
	}
	return u.Base.ResolutionID(meta)
}

// ExtraData adds the UNIT3D specific ids and flags on top of the shared
// ones. Region and distributor only apply to disc releases and are omitted
// when the site has no mapping for them.
func (u *UNIT3D) ExtraData(ctx context.Context, meta *release.Meta) (url.Values, error) {
	extra, err := u.Base.ExtraData(ctx, meta)
	if err != nil {
		return nil, err
	}
	if meta.TMDBID > 0 {
		extra.Set("tmdb", strconv.FormatInt(meta.TMDBID, 10))
	}
	if meta.IMDBID != "" {
		extra.Set("imdb", strings.TrimPrefix(meta.IMDBID, "tt"))
	}
	if u.Env().Tracker.ModQueue {
		extra.Set("mod_queue_opt_in", "1")
	}
	if meta.Type == "disc" {
		if id, ok := u.Table.Regions[strings.ToUpper(meta.Region)]; ok && meta.Region != "" {
			extra.Set("region_id", id)
		}
		if id, ok := u.Table.Distributors[strings.ToUpper(meta.Distributor)]; ok && meta.Distributor != "" {
			extra.Set("distributor_id", id)
		}
	}
	return extra, nil
}

// SearchDuplicates queries the site's torrent filter API scoped to the
// release's category, type, and resolution ids.
func (u *UNIT3D) SearchDuplicates(ctx context.Context, meta *release.Meta) ([]dedupe.Candidate, error) {
	query := dedupe.UNIT3DQuery{
		TMDBID: meta.TMDBID,
		IMDBID: meta.IMDBID,
	}
	if query.TMDBID == 0 && query.IMDBID == "" {
		query.Name = meta.Title
	}
	if id, err := u.CategoryID(meta); err == nil {
		query.Categories = []string{id}
	}
	if id, err := u.TypeID(meta); err == nil {
		query.Types = []string{id}
	}
	if id, err := u.ResolutionID(meta); err == nil {
		query.Resolutions = []string{id}
	}
	return dedupe.SearchUNIT3D(ctx, u.Env().Client, u.Env().Tracker.BaseURL, u.Env().Tracker.APIKey, query)
}

// VerifyAPIKey probes the site's filter endpoint with the configured token
// and a minimal page size. The check command uses it to surface credential
// problems before a run trips over them mid-upload.
func VerifyAPIKey(ctx context.Context, client *http.Client, id, baseURL, apiKey string) error {
	endpoint := strings.TrimRight(baseURL, "/") + "/api/torrents/filter?" + url.Values{
		"api_token": {apiKey},
		"perPage":   {"1"},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, id, "verify api key", "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, id, "verify api key", "request failed", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrAuth, id, "verify api key", "api token rejected", nil)
	default:
		return services.Wrap(services.ErrTransient, id, "verify api key", fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
}

type unit3dUploadResponse struct {
	Success bool   `json:"success"`
	Data    string `json:"data"`
	Message string `json:"message"`
}

var unit3dDownloadLink = regexp.MustCompile(`/torrent/download/(\d+)\.`)

// Submit posts the multipart upload request to the UNIT3D API and
// interprets the JSON response. A response that parses but carries no
// success marker is reported as ambiguous rather than failed.
func (u *UNIT3D) Submit(ctx context.Context, meta *release.Meta, payload Payload) (Receipt, error) {
	endpoint := strings.TrimRight(u.Env().Tracker.BaseURL, "/") + "/api/torrents/upload?api_token=" + url.QueryEscape(u.Env().Tracker.APIKey)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := attachFile(form, "torrent", payload.TorrentPath); err != nil {
		return Receipt{}, services.Wrap(services.ErrValidation, u.ID(), "upload", "attach torrent", err)
	}
	if payload.NFOPath != "" {
		if err := attachFile(form, "nfo", payload.NFOPath); err != nil {
			return Receipt{}, services.Wrap(services.ErrValidation, u.ID(), "upload", "attach nfo", err)
		}
	}
	fields := url.Values{}
	fields.Set("name", payload.Name)
	fields.Set("description", payload.Description)
	fields.Set("mediainfo", payload.MediaInfo)
	fields.Set("category_id", payload.CategoryID)
	fields.Set("type_id", payload.TypeID)
	fields.Set("resolution_id", payload.ResolutionID)
	for key, values := range payload.Extra {
		for _, value := range values {
			fields.Add(key, value)
		}
	}
	for key, values := range fields {
		for _, value := range values {
			if err := form.WriteField(key, value); err != nil {
				return Receipt{}, services.Wrap(services.ErrTransient, u.ID(), "upload", "encode form field", err)
			}
		}
	}
	if err := form.Close(); err != nil {
		return Receipt{}, services.Wrap(services.ErrTransient, u.ID(), "upload", "finalize multipart body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return Receipt{}, services.Wrap(services.ErrTransient, u.ID(), "upload", "build upload request", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := u.Env().Client.Do(req)
	if err != nil {
		return Receipt{}, services.Wrap(services.ErrTransient, u.ID(), "upload", "upload request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Receipt{}, services.Wrap(services.ErrTransient, u.ID(), "upload", "read upload response", err)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusUnauthorized:
		return Receipt{}, services.Wrap(services.ErrAuth, u.ID(), "upload", "api token rejected", nil)
	case resp.StatusCode == http.StatusNotFound:
		return Receipt{}, services.Wrap(services.ErrConfiguration, u.ID(), "upload", "upload endpoint not found, check base_url", nil)
	}

	var parsed unit3dUploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// The site answered with something other than its API's JSON
		// (maintenance page, proxy error). The upload may or may not have
		// been recorded.
		return Receipt{Ambiguous: true, RawBody: raw}, nil
	}
	if !parsed.Success {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return Receipt{}, services.Wrap(services.ErrValidation, u.ID(), "upload", fmt.Sprintf("upload rejected: %s", parsed.Message), nil)
		}
		return Receipt{}, services.Wrap(services.ErrTransient, u.ID(), "upload", fmt.Sprintf("upload failed with status %d: %s", resp.StatusCode, parsed.Message), nil)
	}

	receipt := Receipt{AnnounceURL: u.Env().Tracker.AnnounceURL, RawBody: raw}
	if match := unit3dDownloadLink.FindStringSubmatch(parsed.Data); match != nil {
		receipt.TorrentID = match[1]
		receipt.DetailsURL = strings.TrimRight(u.Env().Tracker.BaseURL, "/") + "/torrents/" + match[1]
	} else {
		receipt.DetailsURL = parsed.Data
	}
	return receipt, nil
}

func attachFile(form *multipart.Writer, field, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	part, err := form.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}
