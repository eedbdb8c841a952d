package review

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the full review engine configuration.
type Config struct {
	// ElementsDir is the root of the element streams produced by the
	// extraction collaborator: <dir>/<law>/<law>-<version>-elements.json.
	ElementsDir string `yaml:"elements_dir"`
	// CorrectionsDir is the root of the correction files.
	CorrectionsDir string `yaml:"corrections_dir"`
	// ReportDB is the SQLite reporting index path.
	ReportDB string `yaml:"report_db"`
	// ProgressPath is the batch checkpoint file.
	ProgressPath string `yaml:"progress_path"`
	// Reviewer is stamped on every saved correction file.
	Reviewer string `yaml:"reviewer"`
	// Workers is the batch worker pool size.
	Workers int `yaml:"workers"`
	// ListenWeb is the local address of the web review editor, empty to
	// disable it.
	ListenWeb string `yaml:"listen_web"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		ElementsDir:    "data/elements",
		CorrectionsDir: "data/corrections",
		ReportDB:       "data/review.db",
		ProgressPath:   "data/batch_progress.json",
		Reviewer:       "unknown",
		Workers:        4,
	}
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig
// merged with the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.ElementsDir == "" {
		return fmt.Errorf("elements_dir is required")
	}
	if c.CorrectionsDir == "" {
		return fmt.Errorf("corrections_dir is required")
	}
	if c.ReportDB == "" {
		return fmt.Errorf("report_db is required")
	}
	if c.ProgressPath == "" {
		return fmt.Errorf("progress_path is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	return nil
}
