// Package config provides configuration file support for ctverify.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/jvs-project/ctverify/pkg/errclass"
	"github.com/jvs-project/ctverify/pkg/fsutil"
	"github.com/jvs-project/ctverify/pkg/logging"
	"github.com/jvs-project/ctverify/pkg/model"
)

// DefaultTokenPath is where the signed transparency token lives in a base archive.
const DefaultTokenPath = "META-INF/code_transparency_signed.jwt"

// Config represents the ctverify configuration.
type Config struct {
	AllowedAlgorithms           []string         `yaml:"allowed_algorithms" json:"allowed_algorithms"`
	TokenPath                   string           `yaml:"token_path" json:"token_path"`
	MaxEntryBytes               int64            `yaml:"max_entry_bytes" json:"max_entry_bytes"`
	Workers                     int              `yaml:"workers" json:"workers"`
	ExpectedVerifierFingerprint string           `yaml:"expected_verifier_fingerprint,omitempty" json:"expected_verifier_fingerprint,omitempty"`
	OutputFormat                string           `yaml:"output_format,omitempty" json:"output_format,omitempty"`
	ProgressEnabled             *bool            `yaml:"progress_enabled,omitempty" json:"progress_enabled,omitempty"`
	Classifier                  ClassifierConfig `yaml:"classifier" json:"classifier"`
	Logging                     LoggingConfig    `yaml:"logging" json:"logging"`
}

// ClassifierConfig maps archive entry suffixes to manifest file kinds.
type ClassifierConfig struct {
	Rules []ClassifierRule `yaml:"rules" json:"rules"`
}

// ClassifierRule is one suffix mapping. The first matching rule wins.
type ClassifierRule struct {
	Suffix string         `yaml:"suffix" json:"suffix"`
	Kind   model.FileKind `yaml:"kind" json:"kind"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // json, text
}

// DefaultRules returns the stock classification table.
func DefaultRules() []ClassifierRule {
	return []ClassifierRule{
		{Suffix: ".dex", Kind: model.KindDex},
		{Suffix: ".so", Kind: model.KindNativeLibrary},
	}
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		AllowedAlgorithms: []string{"RS256"},
		TokenPath:         DefaultTokenPath,
		MaxEntryBytes:     1 << 30,
		Workers:           1,
		Classifier:        ClassifierConfig{Rules: DefaultRules()},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// DefaultPath returns the per-user configuration file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "ctverify", "config.yaml"), nil
}

// Load loads configuration from path.
// Returns default config if file doesn't exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errclass.ErrConfigInvalid.Wrap("parse config", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to path.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := fsutil.AtomicWrite(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	for i, rule := range c.Classifier.Rules {
		c.Classifier.Rules[i].Suffix = norm.NFC.String(strings.TrimSpace(rule.Suffix))
	}
	for i, alg := range c.AllowedAlgorithms {
		c.AllowedAlgorithms[i] = strings.ToUpper(strings.TrimSpace(alg))
	}
	c.ExpectedVerifierFingerprint = strings.ToUpper(strings.TrimSpace(c.ExpectedVerifierFingerprint))
}

// Validate checks the configuration for values the verifier cannot run with.
func (c *Config) Validate() error {
	if len(c.AllowedAlgorithms) == 0 {
		return errclass.ErrConfigInvalid.WithMessage("allowed_algorithms must not be empty")
	}
	if strings.TrimSpace(c.TokenPath) == "" {
		return errclass.ErrConfigInvalid.WithMessage("token_path must not be empty")
	}
	if c.MaxEntryBytes <= 0 {
		return errclass.ErrConfigInvalid.WithMessagef("max_entry_bytes must be positive, got %d", c.MaxEntryBytes)
	}
	if c.Workers < 1 {
		return errclass.ErrConfigInvalid.WithMessagef("workers must be at least 1, got %d", c.Workers)
	}
	if len(c.Classifier.Rules) == 0 {
		return errclass.ErrConfigInvalid.WithMessage("classifier.rules must not be empty")
	}
	for _, rule := range c.Classifier.Rules {
		if rule.Suffix == "" {
			return errclass.ErrConfigInvalid.WithMessage("classifier rule suffix must not be empty")
		}
		if !rule.Kind.Valid() {
			return errclass.ErrConfigInvalid.WithMessagef("classifier rule %q: unknown kind %q", rule.Suffix, rule.Kind)
		}
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return errclass.ErrConfigInvalid.Wrap("logging.level", err)
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return errclass.ErrConfigInvalid.Wrap("logging.format", err)
	}
	if c.OutputFormat != "" && c.OutputFormat != "text" && c.OutputFormat != "json" {
		return errclass.ErrConfigInvalid.WithMessagef("output_format must be text or json, got %q", c.OutputFormat)
	}
	return nil
}

// Keys lists the keys accepted by Get and Set.
func Keys() []string {
	return []string{
		"allowed_algorithms",
		"token_path",
		"max_entry_bytes",
		"workers",
		"expected_verifier_fingerprint",
		"output_format",
		"progress_enabled",
		"logging.level",
		"logging.format",
	}
}

// Get returns the value of key rendered as YAML text.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "allowed_algorithms":
		data, err := yaml.Marshal(c.AllowedAlgorithms)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case "token_path":
		return c.TokenPath, nil
	case "max_entry_bytes":
		return strconv.FormatInt(c.MaxEntryBytes, 10), nil
	case "workers":
		return strconv.Itoa(c.Workers), nil
	case "expected_verifier_fingerprint":
		return c.ExpectedVerifierFingerprint, nil
	case "output_format":
		return c.OutputFormat, nil
	case "progress_enabled":
		if c.ProgressEnabled == nil {
			return "", nil
		}
		return strconv.FormatBool(*c.ProgressEnabled), nil
	case "logging.level":
		return c.Logging.Level, nil
	case "logging.format":
		return c.Logging.Format, nil
	}
	return "", errclass.ErrConfigInvalid.WithMessagef("unknown key %q (valid keys: %s)", key, strings.Join(Keys(), ", "))
}

// Set parses value and assigns it to key, then validates the result.
func (c *Config) Set(key, value string) error {
	switch key {
	case "allowed_algorithms":
		var algs []string
		if err := yaml.Unmarshal([]byte(value), &algs); err != nil {
			return errclass.ErrConfigInvalid.Wrap("allowed_algorithms must be a YAML list", err)
		}
		c.AllowedAlgorithms = algs
	case "token_path":
		c.TokenPath = value
	case "max_entry_bytes":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return errclass.ErrConfigInvalid.Wrap("max_entry_bytes", err)
		}
		c.MaxEntryBytes = n
	case "workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errclass.ErrConfigInvalid.Wrap("workers", err)
		}
		c.Workers = n
	case "expected_verifier_fingerprint":
		c.ExpectedVerifierFingerprint = value
	case "output_format":
		c.OutputFormat = value
	case "progress_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errclass.ErrConfigInvalid.Wrap("progress_enabled", err)
		}
		c.ProgressEnabled = &b
	case "logging.level":
		c.Logging.Level = value
	case "logging.format":
		c.Logging.Format = value
	default:
		return errclass.ErrConfigInvalid.WithMessagef("unknown key %q (valid keys: %s)", key, strings.Join(Keys(), ", "))
	}
	c.normalize()
	return c.Validate()
}
