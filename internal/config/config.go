package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultFile is the config file looked up when none is given.
const DefaultFile = ".availcal.toml"

// Config holds the settings of the availcal client.
type Config struct {
	BaseURL       string       `toml:"base_url"`
	APIRoot       string       `toml:"api_root"`
	UserEmail     string       `toml:"user_email"`
	Token         string       `toml:"token"`
	LogLevel      string       `toml:"log_level"`
	SyncStateFile string       `toml:"sync_state_file"`
	CalDAV        CalDAVConfig `toml:"caldav"`
}

// CalDAVConfig describes the calendar availability is published to.
type CalDAVConfig struct {
	URL          string `toml:"url"`
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	CalendarName string `toml:"calendar_name"`
}

func defaults() *Config {
	return &Config{
		APIRoot:       "/api",
		LogLevel:      "info",
		SyncStateFile: "sync-state.json",
	}
}

// Load reads the config file at path, then applies environment overrides.
// An empty path tries ./.availcal.toml and ~/.config/availcal/.availcal.toml
// and tolerates both being absent.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		for _, candidate := range defaultPaths() {
			_, err := toml.DecodeFile(candidate, cfg)
			if err == nil {
				break
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", candidate, err)
			}
		}
	}

	override(&cfg.BaseURL, "AVAILCAL_BASE_URL")
	override(&cfg.APIRoot, "AVAILCAL_API_ROOT")
	override(&cfg.UserEmail, "AVAILCAL_USER_EMAIL")
	override(&cfg.Token, "AVAILCAL_TOKEN")
	override(&cfg.LogLevel, "LOG_LEVEL")
	override(&cfg.SyncStateFile, "AVAILCAL_SYNC_STATE")
	override(&cfg.CalDAV.URL, "CALDAV_URL")
	override(&cfg.CalDAV.Username, "CALDAV_USERNAME")
	override(&cfg.CalDAV.Password, "CALDAV_PASSWORD")
	override(&cfg.CalDAV.CalendarName, "CALDAV_CALENDAR_NAME")

	return cfg, nil
}

func defaultPaths() []string {
	paths := []string{DefaultFile}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "availcal", DefaultFile))
	}
	return paths
}

func override(field *string, env string) {
	if v := os.Getenv(env); v != "" {
		*field = v
	}
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL not set; use base_url in %s or AVAILCAL_BASE_URL", DefaultFile)
	}
	return nil
}

// ValidateCalDAV checks the settings the publish command needs.
func (c *Config) ValidateCalDAV() error {
	if c.CalDAV.URL == "" {
		return fmt.Errorf("CALDAV_URL environment variable not set")
	}
	if c.CalDAV.CalendarName == "" {
		return fmt.Errorf("CALDAV_CALENDAR_NAME environment variable not set")
	}
	return nil
}
