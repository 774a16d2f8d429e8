package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go-civitai-generate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
ApiToken = "file-token"
Model = "urn:air:sdxl:checkpoint:civitai:101055@128078"
OutputPath = "/tmp/images"
PollIntervalSec = 3
PollDeadlineSec = 180
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadConfig(configPath)

	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.ApiToken)
	assert.Equal(t, "urn:air:sdxl:checkpoint:civitai:101055@128078", cfg.Model)
	assert.Equal(t, "/tmp/images", cfg.OutputPath)
	assert.Equal(t, 3, cfg.PollIntervalSec)
	assert.Equal(t, 180, cfg.PollDeadlineSec)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestApplyEnvOverridesFile(t *testing.T) {
	t.Setenv(EnvApiToken, "env-token")
	t.Setenv(EnvPollIntervalSec, "5")
	t.Setenv(EnvPollDeadlineSec, "")

	cfg := models.Config{ApiToken: "file-token", PollIntervalSec: 2, PollDeadlineSec: 120}
	ApplyEnv(&cfg)

	assert.Equal(t, "env-token", cfg.ApiToken, "environment beats the config file")
	assert.Equal(t, 5, cfg.PollIntervalSec)
	assert.Equal(t, 120, cfg.PollDeadlineSec, "empty variables leave the field untouched")
}

func TestApplyEnvIgnoresNonNumeric(t *testing.T) {
	t.Setenv(EnvPollIntervalSec, "soon")

	cfg := models.Config{PollIntervalSec: 2}
	ApplyEnv(&cfg)

	assert.Equal(t, 2, cfg.PollIntervalSec)
}

func TestApplyPairOverridesEnv(t *testing.T) {
	t.Setenv(EnvModel, "env-model")

	cfg := models.Config{}
	ApplyEnv(&cfg)
	require.NoError(t, ApplyPair(&cfg, EnvModel, "cli-model"))

	assert.Equal(t, "cli-model", cfg.Model, "-e pairs beat the environment")
}

func TestApplyPairRejectsUnknownKey(t *testing.T) {
	cfg := models.Config{}
	err := ApplyPair(&cfg, "CIVITAI_BOGUS", "x")
	assert.Error(t, err)
}

func TestApplyPairRejectsBadNumber(t *testing.T) {
	cfg := models.Config{}
	err := ApplyPair(&cfg, EnvPollDeadlineSec, "later")
	assert.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	cfg := models.Config{}
	ApplyDefaults(&cfg)

	assert.Equal(t, 2, cfg.PollIntervalSec)
	assert.Equal(t, 120, cfg.PollDeadlineSec)
	assert.Equal(t, 60, cfg.ApiClientTimeoutSec)
	assert.NotEmpty(t, cfg.DatabasePath)
	assert.NotEmpty(t, cfg.BleveIndexPath)
}

func TestValidate(t *testing.T) {
	err := Validate(models.Config{ApiToken: "t"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCredentials))

	err = Validate(models.Config{Model: "m"})
	assert.Error(t, err)

	assert.NoError(t, Validate(models.Config{ApiToken: "t", Model: "m"}))
}
