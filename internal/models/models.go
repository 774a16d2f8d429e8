package models

import "time"

type (
	Config struct {
		// Connection/Auth
		ApiToken string `toml:"ApiToken"`

		// Generation target
		Model string `toml:"Model"`

		// Paths
		OutputPath     string `toml:"OutputPath"`
		DatabasePath   string `toml:"DatabasePath"`
		BleveIndexPath string `toml:"BleveIndexPath"`

		// Polling behavior
		PollIntervalSec int `toml:"PollIntervalSec"`
		PollDeadlineSec int `toml:"PollDeadlineSec"`

		// HTTP behavior
		ApiClientTimeoutSec int `toml:"ApiClientTimeoutSec"`

		// Other
		SaveMetadata   bool `toml:"SaveMetadata"`
		LogApiRequests bool `toml:"LogApiRequests"`
	}

	// GenerationRequest is a fully validated text-to-image request with all
	// defaults applied. Instances are built by the generation package and are
	// never mutated afterwards.
	GenerationRequest struct {
		Prompt             string
		NegativePrompt     string
		Sampler            string
		Steps              int
		CfgScale           float64
		Width              int
		Height             int
		Seed               int64
		ClipSkip           int
		AdditionalNetworks map[string]AdditionalNetwork
	}

	// AdditionalNetwork describes an extra network (LoRA, embedding, ...)
	// applied on top of the base model, keyed by its AIR identifier.
	AdditionalNetwork struct {
		Strength    *float64 `json:"strength,omitempty"`
		TriggerWord string   `json:"triggerWord,omitempty"`
	}

	// Orchestration API wire types.

	TextToImageParams struct {
		Prompt         string  `json:"prompt"`
		NegativePrompt string  `json:"negativePrompt,omitempty"`
		Scheduler      string  `json:"scheduler"`
		Steps          int     `json:"steps"`
		CfgScale       float64 `json:"cfgScale"`
		Width          int     `json:"width"`
		Height         int     `json:"height"`
		Seed           int64   `json:"seed"`
		ClipSkip       int     `json:"clipSkip"`
	}

	TextToImageInput struct {
		Model              string                       `json:"model"`
		Params             TextToImageParams            `json:"params"`
		AdditionalNetworks map[string]AdditionalNetwork `json:"additionalNetworks,omitempty"`
	}

	JobRequest struct {
		Type  string           `json:"$type"`
		Input TextToImageInput `json:"input"`
	}

	JobResult struct {
		BlobURL   string `json:"blobUrl"`
		Available bool   `json:"available"`
	}

	JobRecord struct {
		JobID     string    `json:"jobId"`
		Cost      float64   `json:"cost,omitempty"`
		Scheduled bool      `json:"scheduled"`
		Result    JobResult `json:"result"`
	}

	JobStatusResponse struct {
		Token string      `json:"token"`
		Jobs  []JobRecord `json:"jobs"`
	}

	// MaterializedResult is the terminal outcome of a successful generation.
	// Exactly one of RemoteURL or LocalPath is set, depending on whether an
	// output directory was configured.
	MaterializedResult struct {
		RemoteURL string `json:"remoteUrl,omitempty"`
		LocalPath string `json:"path,omitempty"`

		// Bookkeeping for the history store, not part of the result surface.
		ChecksumBLAKE3 string `json:"-"`
		SizeBytes      uint64 `json:"-"`
	}

	// GenerationRecord is the history entry persisted after a successful
	// generation.
	GenerationRecord struct {
		ID             string            `json:"id"`
		Token          string            `json:"token"`
		Model          string            `json:"model"`
		Request        GenerationRequest `json:"request"`
		RemoteURL      string            `json:"remoteUrl,omitempty"`
		LocalPath      string            `json:"localPath,omitempty"`
		ChecksumBLAKE3 string            `json:"checksumBlake3,omitempty"`
		SizeBytes      uint64            `json:"sizeBytes,omitempty"`
		CreatedAt      time.Time         `json:"createdAt"`
		DurationMs     int64             `json:"durationMs"`
		Polls          int               `json:"polls"`
	}
)
