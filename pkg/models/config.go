package models

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	// Source configurations keyed by source name
	Sources map[string]SourceConfig `json:"sources" yaml:"sources"`

	// Entity stream output
	Output OutputConfig `json:"output" yaml:"output"`

	// Metadata index settings
	Index IndexConfig `json:"index" yaml:"index"`

	// Content download settings
	Download DownloadConfig `json:"download" yaml:"download"`

	// Authentication settings
	Auth AuthConfig `json:"auth" yaml:"auth"`
}

type SourceConfig struct {
	// Basic source settings
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Type    string `json:"type"    yaml:"type"`

	// Human-readable instance name
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Source-specific configurations
	Drive DriveSourceConfig `json:"drive,omitempty" yaml:"drive,omitempty"`
}

// DriveSourceConfig defines configuration for a Google Drive source.
type DriveSourceConfig struct {
	// Glob patterns matched against the resolved path; a YAML list or a comma-separated string
	ExcludePatterns PatternList `json:"exclude_patterns" yaml:"exclude_patterns"`

	// Stop after this many files have been emitted (0 = unlimited)
	StopAfterFiles int `json:"stop_after_files" yaml:"stop_after_files"`

	// Override for https://www.googleapis.com/drive/v3 (tests, proxies)
	APIBaseURL string `json:"api_base_url,omitempty" yaml:"api_base_url,omitempty"`

	// Per-request timeout (default 30s)
	RequestTimeout time.Duration `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty"`
}

// PatternList is a list of glob patterns that also accepts a single
// comma-separated scalar in YAML. Entries are normalized by config.NormalizePatterns.
type PatternList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *PatternList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*p = nil

			return nil
		}

		*p = strings.Split(value.Value, ",")

		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return fmt.Errorf("exclude_patterns: %w", err)
		}

		*p = list

		return nil
	default:
		return fmt.Errorf("exclude_patterns: expected a string or a list, got %s", value.ShortTag())
	}
}

// OutputConfig controls the JSON Lines entity stream.
type OutputConfig struct {
	// File path, "-" for stdout, empty to disable
	JSONLPath string `json:"jsonl_path" yaml:"jsonl_path"`
}

// IndexConfig defines the SQL metadata index.
type IndexConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver"  yaml:"driver"` // "sqlite" (default) or "postgres"
	DSN     string `json:"dsn"     yaml:"dsn"`    // sqlite file path or postgres connection URL
}

// DownloadConfig defines how resource bytes are fetched to disk.
type DownloadConfig struct {
	Enabled        bool   `json:"enabled"         yaml:"enabled"`
	Dir            string `json:"dir"             yaml:"dir"`
	Concurrency    int    `json:"concurrency"     yaml:"concurrency"`
	VerifyChecksum bool   `json:"verify_checksum" yaml:"verify_checksum"`
}

type AuthConfig struct {
	// Static OAuth access token; empty falls back to env, prompt, then application default credentials
	AccessToken string `json:"access_token,omitempty" yaml:"access_token,omitempty"`
}
