package dedupe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// UNIT3DQuery carries the server-side filter parameters for the shared
// UNIT3D torrents/filter endpoint.
type UNIT3DQuery struct {
	Name        string
	TMDBID      int64
	IMDBID      string
	Categories  []string
	Types       []string
	Resolutions []string
}

type unit3dFilterResponse struct {
	Data []struct {
		Attributes struct {
			Name        string `json:"name"`
			Size        int64  `json:"size"`
			DetailsLink string `json:"details_link"`
			Files       []struct {
				Name string `json:"name"`
				Size int64  `json:"size"`
			} `json:"files"`
		} `json:"attributes"`
	} `json:"data"`
}

// SearchUNIT3D queries a UNIT3D-family filter endpoint and normalizes the
// response. The identifier, category, type, and resolution narrowing happens
// server-side, so results arrive already scoped.
func SearchUNIT3D(ctx context.Context, client *http.Client, baseURL, apiKey string, q UNIT3DQuery) ([]Candidate, error) {
	endpoint := strings.TrimRight(baseURL, "/") + "/api/torrents/filter"
	params := url.Values{}
	params.Set("api_token", apiKey)
	if q.TMDBID > 0 {
		params.Set("tmdbId", strconv.FormatInt(q.TMDBID, 10))
	}
	if q.IMDBID != "" {
		params.Set("imdbId", strings.TrimPrefix(q.IMDBID, "tt"))
	}
	if q.Name != "" {
		params.Set("name", q.Name)
	}
	for _, c := range q.Categories {
		params.Add("categories[]", c)
	}
	for _, t := range q.Types {
		params.Add("types[]", t)
	}
	for _, r := range q.Resolutions {
		params.Add("resolutions[]", r)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build filter request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("filter request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("filter returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed unit3dFilterResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode filter response: %w", err)
	}

	candidates := make([]Candidate, 0, len(parsed.Data))
	for _, item := range parsed.Data {
		attrs := item.Attributes
		files := make([]string, 0, len(attrs.Files))
		for _, f := range attrs.Files {
			files = append(files, f.Name)
		}
		candidates = append(candidates, Candidate{
			Name:      attrs.Name,
			Size:      attrs.Size,
			FileCount: len(files),
			Files:     files,
			Link:      attrs.DetailsLink,
		})
	}
	return candidates, nil
}
