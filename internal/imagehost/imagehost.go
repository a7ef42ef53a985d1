package imagehost

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"uplink/internal/config"
	"uplink/internal/describe"
	"uplink/internal/logging"
	"uplink/internal/release"
	"uplink/internal/services"
)

// New builds the configured screenshot host.
func New(cfg config.ImageHost, client *http.Client, logger *slog.Logger) (describe.Host, error) {
	if client == nil {
		client = &http.Client{}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "ptpimg":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://ptpimg.me"
		}
		return &PTPImg{
			baseURL: strings.TrimRight(baseURL, "/"),
			apiKey:  cfg.APIKey,
			client:  client,
			logger:  logging.NewComponentLogger(logger, "imagehost"),
		}, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "", "imagehost",
			fmt.Sprintf("unknown image host provider %q", cfg.Provider), nil)
	}
}

// PTPImg uploads screenshots to a ptpimg-compatible host. The API takes a
// multipart POST with the api_key field and returns one code per file; the
// published URL is <base>/<code>.<ext>. The service serves originals only,
// so all three published forms point at the same URL.
type PTPImg struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

type ptpimgResult struct {
	Code string `json:"code"`
	Ext  string `json:"ext"`
}

// Upload posts the files in one request and returns the hosted images in
// input order.
func (p *PTPImg) Upload(ctx context.Context, paths []string) ([]release.Image, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	if p.apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "imagehost", "image host api_key is not set", nil)
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		err := func() error {
			if err := form.WriteField("api_key", p.apiKey); err != nil {
				return err
			}
			for i, path := range paths {
				part, err := form.CreateFormFile(fmt.Sprintf("file-upload[%d]", i), filepath.Base(path))
				if err != nil {
					return err
				}
				file, err := os.Open(path)
				if err != nil {
					return err
				}
				_, err = io.Copy(part, file)
				file.Close()
				if err != nil {
					return err
				}
			}
			return form.Close()
		}()
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/upload.php", pr)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "", "imagehost", "build upload request", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "", "imagehost", "upload request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return nil, services.Wrap(services.ErrAuth, "", "imagehost", "image host rejected the api key", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransient, "", "imagehost",
			fmt.Sprintf("upload returned status %d", resp.StatusCode), nil)
	}

	var results []ptpimgResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, services.Wrap(services.ErrTransient, "", "imagehost", "parse upload response", err)
	}
	if len(results) != len(paths) {
		return nil, services.Wrap(services.ErrTransient, "", "imagehost",
			fmt.Sprintf("uploaded %d files but host returned %d codes", len(paths), len(results)), nil)
	}

	images := make([]release.Image, 0, len(results))
	for _, result := range results {
		url := fmt.Sprintf("%s/%s.%s", p.baseURL, result.Code, result.Ext)
		images = append(images, release.Image{ImgURL: url, RawURL: url, WebURL: url})
	}
	p.logger.Debug("uploaded screenshots", logging.Int("count", len(images)))
	return images, nil
}
