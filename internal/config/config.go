package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"driveindex/internal/sources"
	"driveindex/internal/sources/google"
	"driveindex/internal/sources/google/drive"
	"driveindex/pkg/models"
)

const (
	ConfigFileName = "config.yaml"
	appDirName     = "driveindex"

	DefaultSourceName  = "google_drive"
	DefaultIndexDriver = "sqlite"
)

var customConfigDir string

// SetCustomConfigDir overrides the global config directory (--config-dir).
func SetCustomConfigDir(dir string) {
	customConfigDir = dir
}

// GetConfigDir returns the directory holding config and state files.
func GetConfigDir() (string, error) {
	if customConfigDir != "" {
		return customConfigDir, nil
	}

	userDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine user config directory: %w", err)
	}

	return filepath.Join(userDir, appDirName), nil
}

// LoadConfig loads configuration from the standard search paths.
func LoadConfig() (*models.Config, error) {
	// Search for config file in order:
	// 1. Custom config dir (if set)
	// 2. Global config directory
	// 3. Current directory
	configPaths := getConfigSearchPaths()

	for _, configPath := range configPaths {
		if _, err := os.Stat(configPath); err == nil {
			return LoadConfigFromFile(configPath)
		}
	}

	return nil, fmt.Errorf("no config file found in search paths: %v", configPaths)
}

// SaveConfig saves configuration to the appropriate location.
func SaveConfig(cfg *models.Config) error {
	configPath, err := getConfigFilePath()
	if err != nil {
		return fmt.Errorf("failed to get config file path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file may carry an access token.
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() *models.Config {
	return &models.Config{
		Sources: map[string]models.SourceConfig{
			DefaultSourceName: {
				Enabled: true,
				Type:    "google_drive",
				Name:    "Google Drive",
				Drive: models.DriveSourceConfig{
					ExcludePatterns: models.PatternList{},
					StopAfterFiles:  0,
				},
			},
		},
		Output: models.OutputConfig{
			JSONLPath: "-",
		},
		Index: models.IndexConfig{
			Enabled: false,
			Driver:  DefaultIndexDriver,
			DSN:     "", // Resolved to <config dir>/index.db at runtime
		},
		Download: models.DownloadConfig{
			Enabled:        false,
			Dir:            "./downloads",
			Concurrency:    4,
			VerifyChecksum: true,
		},
	}
}

// CreateDefaultConfig creates and saves a default configuration.
func CreateDefaultConfig() error {
	return SaveConfig(GetDefaultConfig())
}

// ConfigFilePath returns the path SaveConfig writes to.
func ConfigFilePath() (string, error) {
	return getConfigFilePath()
}

func getConfigSearchPaths() []string {
	var paths []string

	if customConfigDir != "" {
		paths = append(paths, filepath.Join(customConfigDir, ConfigFileName))
	}

	if globalConfigDir, err := GetConfigDir(); err == nil && globalConfigDir != customConfigDir {
		paths = append(paths, filepath.Join(globalConfigDir, ConfigFileName))
	}

	paths = append(paths, ConfigFileName)

	return paths
}

func getConfigFilePath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, ConfigFileName), nil
}

// LoadConfigFromFile loads and normalizes configuration from a specific file.
func LoadConfigFromFile(configPath string) (*models.Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var cfg models.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	Normalize(&cfg)

	return &cfg, nil
}

// Normalize fills defaults and cleans pattern lists in place.
func Normalize(cfg *models.Config) {
	for name, src := range cfg.Sources {
		src.Drive.ExcludePatterns = NormalizePatterns(src.Drive.ExcludePatterns)
		cfg.Sources[name] = src
	}

	if cfg.Index.Driver == "" {
		cfg.Index.Driver = DefaultIndexDriver
	}

	if cfg.Download.Enabled && cfg.Download.Concurrency == 0 {
		cfg.Download.Concurrency = 1
	}
}

// NormalizePatterns trims whitespace and drops empty entries.
func NormalizePatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))

	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		out = append(out, p)
	}

	return out
}

// ParsePatterns splits comma-separated user input into normalized patterns.
func ParsePatterns(raw string) []string {
	return NormalizePatterns(strings.Split(raw, ","))
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := validateSources(cfg.Sources); err != nil {
		return fmt.Errorf("sources configuration error: %w", err)
	}

	if err := validateIndex(cfg.Index); err != nil {
		return fmt.Errorf("index configuration error: %w", err)
	}

	if err := validateDownload(cfg.Download); err != nil {
		return fmt.Errorf("download configuration error: %w", err)
	}

	return nil
}

func validateSources(configured map[string]models.SourceConfig) error {
	if len(configured) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}

	for sourceName, sourceConfig := range configured {
		if err := validateSourceConfig(sourceConfig); err != nil {
			return fmt.Errorf("source '%s': %w", sourceName, err)
		}
	}

	return nil
}

func validateSourceConfig(config models.SourceConfig) error {
	if config.Type == "" {
		return fmt.Errorf("type is required")
	}

	if _, ok := sources.DefaultRegistry().Lookup(config.Type); !ok {
		return fmt.Errorf("unsupported source type: %s", config.Type)
	}

	if config.Type == google.SourceTypeDrive {
		if config.Drive.StopAfterFiles < 0 {
			return fmt.Errorf("stop_after_files must not be negative, got %d", config.Drive.StopAfterFiles)
		}

		if config.Drive.RequestTimeout < 0 {
			return fmt.Errorf("request_timeout must not be negative")
		}

		for _, p := range config.Drive.ExcludePatterns {
			if err := drive.ValidatePattern(p); err != nil {
				return err
			}
		}
	}

	return nil
}

func validateIndex(index models.IndexConfig) error {
	if !index.Enabled {
		return nil
	}

	switch index.Driver {
	case "", "sqlite":
	case "postgres":
		if index.DSN == "" {
			return fmt.Errorf("dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported index driver %q (supported: sqlite, postgres)", index.Driver)
	}

	return nil
}

func validateDownload(download models.DownloadConfig) error {
	if !download.Enabled {
		return nil
	}

	if download.Dir == "" {
		return fmt.Errorf("dir is required when downloads are enabled")
	}

	if download.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", download.Concurrency)
	}

	return nil
}
