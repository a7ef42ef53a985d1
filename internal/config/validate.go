package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDescription(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	for _, id := range c.EnabledTrackers() {
		if err := c.validateTracker(id, c.Trackers[id]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateDescription() error {
	if c.Description.CharacterLimit < 0 {
		return errors.New("description.character_limit must not be negative")
	}
	if c.Description.ScreensPerRow > 6 {
		return errors.New("description.screens_per_row must be 6 or fewer")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateTracker(id string, trk Tracker) error {
	if trk.BaseURL == "" {
		return fmt.Errorf("trackers.%s.base_url must be set", id)
	}
	if trk.AnnounceURL == "" {
		return fmt.Errorf("trackers.%s.announce_url must be set", id)
	}
	if trk.APIKey == "" && strings.TrimSpace(trk.Session.URL) == "" {
		return fmt.Errorf("trackers.%s: either api_key or a session check must be configured", id)
	}
	switch trk.EntropyBits {
	case 0, 32, 64:
	default:
		return fmt.Errorf("trackers.%s.entropy_bits must be 0, 32, or 64", id)
	}
	if trk.Session.URL != "" {
		if err := validateSessionCheck(id, trk.Session); err != nil {
			return err
		}
	}
	return nil
}

// validateSessionCheck enforces that exactly one validation check is
// configured. Zero checks cannot prove a session; more than one makes the
// outcome ambiguous when they disagree.
func validateSessionCheck(id string, sc SessionCheck) error {
	configured := 0
	if strings.TrimSpace(sc.SuccessText) != "" {
		configured++
	}
	if strings.TrimSpace(sc.ErrorText) != "" {
		configured++
	}
	if sc.StatusCode != 0 {
		configured++
	}
	if strings.TrimSpace(sc.TokenPattern) != "" {
		configured++
	}
	if configured != 1 {
		return fmt.Errorf("trackers.%s.session: exactly one validation check must be set, found %d", id, configured)
	}
	return nil
}
