package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"go-civitai-generate/internal/models"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

// Environment variable names recognized by ApplyEnv. Command-line overrides
// win over these; these win over the config file.
const (
	EnvApiToken        = "CIVITAI_API_TOKEN"
	EnvModel           = "CIVITAI_MODEL"
	EnvOutputPath      = "CIVITAI_OUTPUT_DIR"
	EnvDatabasePath    = "CIVITAI_DATABASE_PATH"
	EnvBleveIndexPath  = "CIVITAI_BLEVE_INDEX_PATH"
	EnvPollIntervalSec = "CIVITAI_POLL_INTERVAL_SEC"
	EnvPollDeadlineSec = "CIVITAI_POLL_DEADLINE_SEC"
)

// ErrMissingCredentials is returned by Validate when the API token or target
// model is absent. Commands that submit jobs treat this as fatal at startup.
var ErrMissingCredentials = errors.New("ApiToken and Model must be configured")

// LoadConfig reads the configuration from the specified path (defaulting to
// "config.toml") and returns the populated models.Config.
func LoadConfig(configFilePath string) (models.Config, error) {
	if configFilePath == "" {
		configFilePath = "config.toml"
	}
	var cfg models.Config
	if _, err := toml.DecodeFile(configFilePath, &cfg); err != nil {
		return models.Config{}, fmt.Errorf("error loading config file %s: %w", configFilePath, err)
	}
	log.Infof("Configuration loaded from %s", configFilePath)
	return cfg, nil
}

// ApplyEnv overlays process environment variables onto cfg. Empty variables
// leave the corresponding field untouched.
func ApplyEnv(cfg *models.Config) {
	setString(&cfg.ApiToken, EnvApiToken)
	setString(&cfg.Model, EnvModel)
	setString(&cfg.OutputPath, EnvOutputPath)
	setString(&cfg.DatabasePath, EnvDatabasePath)
	setString(&cfg.BleveIndexPath, EnvBleveIndexPath)
	setInt(&cfg.PollIntervalSec, EnvPollIntervalSec)
	setInt(&cfg.PollDeadlineSec, EnvPollDeadlineSec)
}

// ApplyPair overlays a single KEY=VALUE override (from a -e flag) onto cfg.
// Unknown keys are reported so typos do not silently vanish.
func ApplyPair(cfg *models.Config, key, value string) error {
	switch key {
	case EnvApiToken:
		cfg.ApiToken = value
	case EnvModel:
		cfg.Model = value
	case EnvOutputPath:
		cfg.OutputPath = value
	case EnvDatabasePath:
		cfg.DatabasePath = value
	case EnvBleveIndexPath:
		cfg.BleveIndexPath = value
	case EnvPollIntervalSec:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %q", key, value)
		}
		cfg.PollIntervalSec = n
	case EnvPollDeadlineSec:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %q", key, value)
		}
		cfg.PollDeadlineSec = n
	default:
		return fmt.Errorf("unknown configuration key %q", key)
	}
	return nil
}

// ApplyDefaults fills in defaults for unset tunables.
func ApplyDefaults(cfg *models.Config) {
	if cfg.PollIntervalSec <= 0 {
		cfg.PollIntervalSec = 2
	}
	if cfg.PollDeadlineSec <= 0 {
		cfg.PollDeadlineSec = 120
	}
	if cfg.ApiClientTimeoutSec <= 0 {
		cfg.ApiClientTimeoutSec = 60
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "generations.db"
	}
	if cfg.BleveIndexPath == "" {
		cfg.BleveIndexPath = "generations.bleve"
	}
}

// Validate checks the fields a job submission cannot run without.
func Validate(cfg models.Config) error {
	if cfg.ApiToken == "" || cfg.Model == "" {
		return ErrMissingCredentials
	}
	return nil
}

func setString(dst *string, envKey string) {
	if v := os.Getenv(envKey); v != "" {
		*dst = v
	}
}

func setInt(dst *int, envKey string) {
	v := os.Getenv(envKey)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warnf("Ignoring non-numeric value %q for %s", v, envKey)
		return
	}
	*dst = n
}
