package cookies

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"uplink/internal/config"
	"uplink/internal/logging"
	"uplink/internal/services"
)

// State tracks the cookie session lifecycle.
type State int

const (
	NoSession State = iota
	Loaded
	Validated
	Saved
	Invalid
)

func (s State) String() string {
	switch s {
	case NoSession:
		return "no-session"
	case Loaded:
		return "loaded"
	case Validated:
		return "validated"
	case Saved:
		return "saved"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Session manages one tracker's cookie-authenticated HTTP session.
type Session struct {
	tracker        string
	cookiePath     string
	check          config.SessionCheck
	diagnosticsDir string
	client         *http.Client
	logger         *slog.Logger

	jar   *Jar
	state State
	token string
}

// NewSession builds an unloaded session for one tracker.
func NewSession(tracker string, trk config.Tracker, cfg *config.Config, logger *slog.Logger) *Session {
	timeout := time.Duration(cfg.HTTP.RequestTimeout) * time.Second
	return &Session{
		tracker:        tracker,
		cookiePath:     trk.CookiePath,
		check:          trk.Session,
		diagnosticsDir: cfg.DiagnosticsDir(),
		client:         services.NewHTTPClient(timeout, cfg.HTTP.UserAgent),
		logger:         logging.NewComponentLogger(logger, "cookies"),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Token returns the value captured by a token-pattern validation check.
func (s *Session) Token() string {
	return s.token
}

// Client returns an HTTP client carrying the loaded jar. Callers must Load
// and Validate first.
func (s *Session) Client() *http.Client {
	return s.client
}

// Load reads the persisted cookie file into the session's client.
func (s *Session) Load() error {
	jar, err := Load(s.cookiePath)
	if err != nil {
		s.state = Invalid
		return services.Wrap(services.ErrAuth, s.tracker, "load cookies", "", err)
	}
	s.jar = jar
	s.client.Jar = jar
	s.state = Loaded
	return nil
}

// Validate issues a request against the tracker's known authenticated page
// and applies the configured check. On success the jar (including any
// refreshed cookies the response set) is saved back to disk; on failure the
// response body is persisted for diagnosis and the jar is left untouched on
// disk.
func (s *Session) Validate(ctx context.Context) error {
	if s.state != Loaded {
		return services.Wrap(services.ErrConfiguration, s.tracker, "validate session", fmt.Sprintf("session is %s, expected loaded", s.state), nil)
	}
	if strings.TrimSpace(s.check.URL) == "" {
		return services.Wrap(services.ErrConfiguration, s.tracker, "validate session", "no session check URL configured", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.check.URL, nil)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, s.tracker, "validate session", "build request", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.state = Invalid
		return services.Wrap(services.ErrTransient, s.tracker, "validate session", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		s.state = Invalid
		return services.Wrap(services.ErrTransient, s.tracker, "validate session", "read response", err)
	}

	ok, err := s.applyCheck(resp.StatusCode, body)
	if err != nil {
		s.state = Invalid
		return err
	}
	if !ok {
		s.state = Invalid
		diagPath := s.persistDiagnostics(body)
		s.logger.Warn("session validation failed",
			logging.String(logging.FieldTracker, s.tracker),
			logging.Int("status_code", resp.StatusCode),
			logging.String("diagnostic_file", diagPath),
			logging.String(logging.FieldErrorHint, "the saved response may contain credentials or passkeys; review before sharing"))
		return services.Wrap(services.ErrAuth, s.tracker, "validate session", "authenticated page check failed", nil)
	}

	s.state = Validated
	if err := s.jar.Save(); err != nil {
		return services.Wrap(nil, s.tracker, "validate session", "save cookie jar", err)
	}
	s.state = Saved
	s.logger.Debug("session validated and jar saved",
		logging.String(logging.FieldTracker, s.tracker),
		logging.String("cookie_path", s.cookiePath))
	return nil
}

func (s *Session) applyCheck(statusCode int, body []byte) (bool, error) {
	text := string(body)
	switch {
	case strings.TrimSpace(s.check.SuccessText) != "":
		return strings.Contains(text, s.check.SuccessText), nil
	case strings.TrimSpace(s.check.ErrorText) != "":
		return !strings.Contains(text, s.check.ErrorText), nil
	case s.check.StatusCode != 0:
		return statusCode == s.check.StatusCode, nil
	case strings.TrimSpace(s.check.TokenPattern) != "":
		pattern, err := regexp.Compile(s.check.TokenPattern)
		if err != nil {
			return false, services.Wrap(services.ErrConfiguration, s.tracker, "validate session", "compile token pattern", err)
		}
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			return false, nil
		}
		if len(match) > 1 {
			s.token = match[1]
		} else {
			s.token = match[0]
		}
		return true, nil
	default:
		return false, services.Wrap(services.ErrConfiguration, s.tracker, "validate session", "no validation check configured", nil)
	}
}

func (s *Session) persistDiagnostics(body []byte) string {
	if s.diagnosticsDir == "" {
		return ""
	}
	if err := os.MkdirAll(s.diagnosticsDir, 0o755); err != nil {
		s.logger.Warn("cannot create diagnostics directory", logging.Error(err))
		return ""
	}
	name := fmt.Sprintf("%s-session-%s.html", s.tracker, time.Now().UTC().Format("20060102-150405"))
	path := filepath.Join(s.diagnosticsDir, name)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		s.logger.Warn("cannot persist diagnostic body", logging.Error(err))
		return ""
	}
	return path
}
