// Package config loads the core's INI configuration file (spec.md §6):
// [figshare_api], [system], and [aptrust] sections. Parsing is done with
// gopkg.in/ini.v1, matching the ini-based config loading pattern found
// elsewhere in the retrieved dependency corpus (storj-storj).
package config

import (
	"fmt"
	"os"

	"gopkg.in/ini.v1"
)

// FigshareAPI mirrors the [figshare_api] INI section.
type FigshareAPI struct {
	URL          string `ini:"url"`
	Token        string `ini:"token"`
	Institution  string `ini:"institution"`
	Retries      int    `ini:"retries"`
	RetriesWait  int    `ini:"retries_wait"`
}

// System mirrors the [system] INI section.
type System struct {
	LogsLocation                string `ini:"logs_location"`
	PreservationStorageLocation string `ini:"preservation_storage_location"`
	CurationStorageLocation     string `ini:"curation_storage_location"`
	AdditionalPercentRequired   float64 `ini:"additional_percentage_required"`
	BagNamePrefix               string `ini:"bag_name_prefix"`
	PostProcessScriptCommand    string `ini:"post_process_script_command"`
	PreProcessScriptCommand     string `ini:"pre_process_script_command"`
	DryRun                      bool   `ini:"dry-run"`
	ContinueOnError             bool   `ini:"continue-on-error"`
}

// Aptrust mirrors the [aptrust] INI section — the final remote store.
type Aptrust struct {
	URL                    string `ini:"url"`
	User                   string `ini:"user"`
	Token                  string `ini:"token"`
	ItemsPerPage           int    `ini:"items_per_page"`
	AltIdentifierStartsWith string `ini:"alt_identifier_starts_with"`
	Retries                int    `ini:"retries"`
	RetriesWait            int    `ini:"retries_wait"`
}

// Config is the fully parsed INI configuration.
type Config struct {
	FigshareAPI FigshareAPI
	System      System
	Aptrust     Aptrust
}

// requiredKeys lists the keys app.py-equivalent pre-flight validation
// checks before any network I/O (spec.md §7, SPEC_FULL.md §6.1).
var requiredKeys = []struct {
	section string
	key     string
	get     func(c Config) string
}{
	{"figshare_api", "url", func(c Config) string { return c.FigshareAPI.URL }},
	{"figshare_api", "token", func(c Config) string { return c.FigshareAPI.Token }},
	{"figshare_api", "institution", func(c Config) string { return c.FigshareAPI.Institution }},
	{"system", "logs_location", func(c Config) string { return c.System.LogsLocation }},
	{"system", "preservation_storage_location", func(c Config) string { return c.System.PreservationStorageLocation }},
	{"system", "curation_storage_location", func(c Config) string { return c.System.CurationStorageLocation }},
	{"system", "post_process_script_command", func(c Config) string { return c.System.PostProcessScriptCommand }},
}

// Load parses the INI file at path and validates required keys are present
// and that the configured storage locations exist and are accessible
// (spec.md §7 "Config invalid — fatal, exit before any network I/O").
func Load(path string) (Config, error) {
	var cfg Config

	f, err := ini.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("config: failed to read %q: %w", path, err)
	}

	if err := f.Section("figshare_api").MapTo(&cfg.FigshareAPI); err != nil {
		return cfg, fmt.Errorf("config: [figshare_api]: %w", err)
	}
	if err := f.Section("system").MapTo(&cfg.System); err != nil {
		return cfg, fmt.Errorf("config: [system]: %w", err)
	}
	if err := f.Section("aptrust").MapTo(&cfg.Aptrust); err != nil {
		return cfg, fmt.Errorf("config: [aptrust]: %w", err)
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	for _, rk := range requiredKeys {
		if rk.get(cfg) == "" {
			return fmt.Errorf("config: missing required key [%s] %s", rk.section, rk.key)
		}
	}

	for _, path := range []string{
		cfg.System.PreservationStorageLocation,
		cfg.System.CurationStorageLocation,
	} {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("config: required path %q is not accessible: %w", path, err)
		}
	}

	if _, err := os.Stat(cfg.System.LogsLocation); err != nil {
		if mkErr := os.MkdirAll(cfg.System.LogsLocation, 0o755); mkErr != nil {
			return fmt.Errorf("config: logs_location %q is not accessible and could not be created: %w", cfg.System.LogsLocation, mkErr)
		}
	}

	return nil
}

// SlackFactor returns 1 + additional_percentage_required/100 (spec.md §4.6).
func (s System) SlackFactor() float64 {
	return 1 + s.AdditionalPercentRequired/100
}
