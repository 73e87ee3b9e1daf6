package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/ctverify/pkg/errclass"
	"github.com/jvs-project/ctverify/pkg/model"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, []string{"RS256"}, cfg.AllowedAlgorithms)
	assert.Equal(t, "META-INF/code_transparency_signed.jwt", cfg.TokenPath)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, DefaultRules(), cfg.Classifier.Rules)
	require.NoError(t, cfg.Validate())
}

func TestLoad_NotExists(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Exists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
allowed_algorithms: [rs256]
workers: 4
expected_verifier_fingerprint: "ab cd"
classifier:
  rules:
    - suffix: " .odex "
      kind: DEX
    - suffix: .so
      kind: NATIVE_LIBRARY
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"RS256"}, cfg.AllowedAlgorithms)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "AB CD", cfg.ExpectedVerifierFingerprint)
	assert.Equal(t, ".odex", cfg.Classifier.Rules[0].Suffix)
	assert.Equal(t, model.KindDex, cfg.Classifier.Rules[0].Kind)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Unset keys keep their defaults.
	assert.Equal(t, DefaultTokenPath, cfg.TokenPath)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: [not, a, number"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errclass.ErrConfigInvalid)
}

func TestLoad_UnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "classifier:\n  rules:\n    - suffix: .jar\n      kind: JAR\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	assert.ErrorIs(t, err, errclass.ErrConfigInvalid)
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Workers = 8

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.Workers)
}

func TestConfig_Set(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("allowed_algorithms", `["RS256", "ps256"]`))
	assert.Equal(t, []string{"RS256", "PS256"}, cfg.AllowedAlgorithms)

	require.NoError(t, cfg.Set("workers", "3"))
	assert.Equal(t, 3, cfg.Workers)

	require.NoError(t, cfg.Set("progress_enabled", "true"))
	require.NotNil(t, cfg.ProgressEnabled)
	assert.True(t, *cfg.ProgressEnabled)

	require.NoError(t, cfg.Set("logging.level", "debug"))
	assert.Equal(t, "debug", cfg.Logging.Level)

	assert.Error(t, cfg.Set("invalid_key", "value"))
	assert.Error(t, cfg.Set("workers", "zero"))
	assert.Error(t, cfg.Set("workers", "0"))
	assert.Error(t, cfg.Set("progress_enabled", "maybe"))
	assert.Error(t, cfg.Set("logging.level", "chatty"))
	assert.Error(t, cfg.Set("output_format", "xml"))
}

func TestConfig_Get(t *testing.T) {
	cfg := Default()

	val, err := cfg.Get("allowed_algorithms")
	require.NoError(t, err)
	assert.Equal(t, "- RS256\n", val)

	val, err = cfg.Get("token_path")
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenPath, val)

	val, err = cfg.Get("progress_enabled")
	require.NoError(t, err)
	assert.Empty(t, val)

	_, err = cfg.Get("invalid_key")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cases := map[string]func(*Config){
		"no algorithms":  func(c *Config) { c.AllowedAlgorithms = nil },
		"no token path":  func(c *Config) { c.TokenPath = " " },
		"zero max bytes": func(c *Config) { c.MaxEntryBytes = 0 },
		"zero workers":   func(c *Config) { c.Workers = 0 },
		"no rules":       func(c *Config) { c.Classifier.Rules = nil },
		"empty suffix":   func(c *Config) { c.Classifier.Rules = []ClassifierRule{{Kind: model.KindDex}} },
		"bad log format": func(c *Config) { c.Logging.Format = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), errclass.ErrConfigInvalid)
		})
	}
}

func TestKeys(t *testing.T) {
	cfg := Default()
	for _, key := range Keys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}
