package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	// DefaultConfigPath is used when STACKCHECK_CONFIG is not set.
	DefaultConfigPath = "./stackcheck.yaml"

	// DefaultDBPath is where report history is kept unless DB_PATH says otherwise.
	DefaultDBPath = "./data/stackcheck.db"

	DefaultAPIPort     = 8080
	DefaultMaxProjects = 3
)

// DefaultExcludePatterns are skipped by the scanner when no patterns are configured.
var DefaultExcludePatterns = []string{"node_modules", ".git", ".svn", "vendor"}

// Config represents the application configuration.
// It is loaded from an optional YAML file and then overridden by environment variables.
type Config struct {
	// DBPath is the SQLite file for report history. Empty disables history.
	DBPath string `yaml:"db_path"`

	// ScanDirectories lists directories to scan for compose files
	ScanDirectories []string `yaml:"scan_directories"`

	// ExcludePatterns lists directory patterns to exclude from scanning
	ExcludePatterns []string `yaml:"exclude_patterns"`

	// MaxProjects bounds how many projects a comparison workspace holds
	MaxProjects int `yaml:"max_projects"`

	// APIPort is the port used by the serve command
	APIPort int `yaml:"api_port"`

	// RecordHistory controls whether validate/compare runs are stored
	RecordHistory *bool `yaml:"record_history"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the configuration used when nothing is configured.
func Default() Config {
	record := true
	return Config{
		DBPath:          DefaultDBPath,
		ScanDirectories: []string{"."},
		ExcludePatterns: append([]string(nil), DefaultExcludePatterns...),
		MaxProjects:     DefaultMaxProjects,
		APIPort:         DefaultAPIPort,
		RecordHistory:   &record,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Path returns the config file location from STACKCHECK_CONFIG or the default.
func Path() string {
	if p := strings.TrimSpace(os.Getenv("STACKCHECK_CONFIG")); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (a missing file is not an error), then environment overrides.
func Load(path string) (*Config, error) {
	fileConfig, err := LoadYAMLConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load YAML config: %w", err)
	}

	envConfig, err := loadFromEnv(os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	merged := MergeConfigs(MergeConfigs(Default(), fileConfig), envConfig)
	return &merged, nil
}

// loadFromEnv reads the supported environment overrides.
// lookup is os.LookupEnv outside of tests.
func loadFromEnv(lookup func(string) (string, bool)) (Config, error) {
	var cfg Config

	if val, ok := lookup("DB_PATH"); ok {
		cfg.DBPath = strings.TrimSpace(val)
		if cfg.DBPath == "" {
			// Explicitly empty disables history.
			record := false
			cfg.RecordHistory = &record
		}
	}

	if val, ok := lookup("LOG_LEVEL"); ok && strings.TrimSpace(val) != "" {
		cfg.LogLevel = strings.TrimSpace(val)
	}

	if val, ok := lookup("LOG_FORMAT"); ok && strings.TrimSpace(val) != "" {
		cfg.LogFormat = strings.TrimSpace(val)
	}

	if val, ok := lookup("STACKCHECK_PORT"); ok && strings.TrimSpace(val) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return Config{}, fmt.Errorf("invalid STACKCHECK_PORT %q: %w", val, err)
		}
		cfg.APIPort = port
	}

	return cfg, nil
}

// MergeConfigs merges two configurations with override taking precedence.
// Zero values in override leave the base value in place.
func MergeConfigs(base, override Config) Config {
	merged := base

	if override.DBPath != "" {
		merged.DBPath = override.DBPath
	}

	if len(override.ScanDirectories) > 0 {
		merged.ScanDirectories = override.ScanDirectories
	}

	if len(override.ExcludePatterns) > 0 {
		merged.ExcludePatterns = override.ExcludePatterns
	}

	if override.MaxProjects != 0 {
		merged.MaxProjects = override.MaxProjects
	}

	if override.APIPort != 0 {
		merged.APIPort = override.APIPort
	}

	if override.RecordHistory != nil {
		record := *override.RecordHistory
		merged.RecordHistory = &record
	}

	if override.LogLevel != "" {
		merged.LogLevel = override.LogLevel
	}

	if override.LogFormat != "" {
		merged.LogFormat = override.LogFormat
	}

	return merged
}

// HistoryEnabled reports whether reports should be written to storage.
func (c *Config) HistoryEnabled() bool {
	if c.DBPath == "" {
		return false
	}
	return c.RecordHistory == nil || *c.RecordHistory
}

// Validate checks the configuration values.
// Unreachable scan directories only produce warnings.
func (c *Config) Validate() ValidationResult {
	result := ValidationResult{}

	if c.MaxProjects < 1 {
		result.Errorf("max_projects must be at least 1, got %d", c.MaxProjects)
	}

	result.Merge(ValidatePort(c.APIPort))
	result.Merge(ValidateLogLevel(c.LogLevel))
	result.Merge(ValidateLogFormat(c.LogFormat))

	for _, dir := range c.ScanDirectories {
		result.Merge(ValidatePath(dir))
	}

	return result
}
