// Package config loads and validates the .comment-catcher.yaml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the repository root when
// no explicit path is given.
const DefaultFileName = ".comment-catcher.yaml"

// configValidate is the validator instance for Config.
var configValidate = validator.New()

// Config holds every tunable for a run. Zero values are filled in by
// ApplyDefaults before validation, so a missing or empty file yields a
// fully working configuration.
type Config struct {
	// Model is the chat model used for comment analysis.
	Model string `yaml:"model" validate:"required"`

	// BaseURL overrides the OpenAI-compatible API endpoint. Empty means
	// the library default.
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`

	// MaxDepth bounds dependency graph expansion from the changed files.
	MaxDepth int `yaml:"max_depth" validate:"min=0,max=10"`

	// MinCommentLength is the shortest cleaned comment text still worth
	// analyzing.
	MinCommentLength int `yaml:"min_comment_length" validate:"min=1"`

	// IgnorePatterns are case-insensitive regexes; matching comments are
	// skipped. Nil means the built-in directive patterns.
	IgnorePatterns []string `yaml:"ignore_patterns"`

	// Exclude lists glob patterns for files to drop from expansion and
	// extraction, e.g. "**/*_test.go".
	Exclude []string `yaml:"exclude"`

	// Extensions limits which file types are parsed. Entries include the
	// dot, e.g. ".go".
	Extensions []string `yaml:"extensions" validate:"dive,startswith=."`

	// ContextLines is the window of surrounding source sent with each
	// comment.
	ContextLines int `yaml:"context_lines" validate:"min=0,max=50"`

	// BatchSize is how many comments go into one model request.
	BatchSize int `yaml:"batch_size" validate:"min=1,max=100"`

	// RequestsPerMinute paces model calls. Zero disables the limiter.
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"min=0"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Model:             "gpt-4o-mini",
		MaxDepth:          2,
		MinCommentLength:  10,
		ContextLines:      3,
		BatchSize:         20,
		RequestsPerMinute: 30,
	}
}

// ApplyDefaults fills zero-valued fields from DefaultConfig. Explicit
// values, including non-empty slices, are kept.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = d.MaxDepth
	}
	if c.MinCommentLength == 0 {
		c.MinCommentLength = d.MinCommentLength
	}
	if c.ContextLines == 0 {
		c.ContextLines = d.ContextLines
	}
	if c.BatchSize == 0 {
		c.BatchSize = d.BatchSize
	}
	if c.RequestsPerMinute == 0 {
		c.RequestsPerMinute = d.RequestsPerMinute
	}
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Load reads the config file at path, or the default file under root when
// path is empty.
//
// # Description
//
// A missing default file is not an error; DefaultConfig is returned. A
// missing explicit path, unreadable file, malformed YAML, or failed
// validation is fatal and returned before any network or git work starts.
//
// # Inputs
//
//   - root: Repository root used to locate the default file.
//   - path: Explicit config path, or "" for root/.comment-catcher.yaml.
//
// # Outputs
//
//   - Config: The validated configuration.
//   - error: Non-nil on any load or validation failure.
func Load(root, path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, DefaultFileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			cfg := DefaultConfig()
			return cfg, cfg.Validate()
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
