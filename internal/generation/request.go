package generation

import (
	"fmt"
	"strings"

	"go-civitai-generate/internal/models"
)

// Parameter defaults applied when a field is absent from the input.
const (
	DefaultSampler  = "EulerA"
	DefaultSteps    = 20
	DefaultCfgScale = 7
	DefaultWidth    = 512
	DefaultHeight   = 768
	DefaultClipSkip = 2

	// RandomSeed asks the service to pick a seed.
	RandomSeed = -1
)

// Allowed scheduler values for the orchestration API.
var allowedSamplers = map[string]bool{
	"EulerA":       true,
	"Euler":        true,
	"LMS":          true,
	"Heun":         true,
	"DPM2":         true,
	"DPM2A":        true,
	"DPM2SA":       true,
	"DPM2M":        true,
	"DPMSDE":       true,
	"DPMFast":      true,
	"DPMAdaptive":  true,
	"LMSKarras":    true,
	"DPM2Karras":   true,
	"DPM2AKarras":  true,
	"DPM2SAKarras": true,
	"DPM2MKarras":  true,
	"DPMSDEKarras": true,
	"DDIM":         true,
	"PLMS":         true,
	"UniPC":        true,
}

// RequestInput is the raw, wire-shaped form of a generation request as it
// arrives from CLI flags or tool arguments. Pointer fields distinguish
// "absent, use the default" from an explicit zero.
type RequestInput struct {
	Prompt             string                              `json:"prompt"`
	NegativePrompt     string                              `json:"negativePrompt,omitempty"`
	Sampler            string                              `json:"sampler,omitempty"`
	Steps              *int                                `json:"steps,omitempty"`
	CfgScale           *float64                            `json:"cfgScale,omitempty"`
	Width              *int                                `json:"width,omitempty"`
	Height             *int                                `json:"height,omitempty"`
	Seed               *int64                              `json:"seed,omitempty"`
	ClipSkip           *int                                `json:"clipSkip,omitempty"`
	AdditionalNetworks map[string]models.AdditionalNetwork `json:"additionalNetworks,omitempty"`
}

// BuildRequest normalizes raw input into a validated GenerationRequest.
// Every constraint violation is reported against the offending field; values
// are never silently clamped into range. No network access happens here.
func BuildRequest(in RequestInput) (models.GenerationRequest, error) {
	req := models.GenerationRequest{
		Prompt:         strings.TrimSpace(in.Prompt),
		NegativePrompt: in.NegativePrompt,
		Sampler:        DefaultSampler,
		Steps:          DefaultSteps,
		CfgScale:       DefaultCfgScale,
		Width:          DefaultWidth,
		Height:         DefaultHeight,
		Seed:           RandomSeed,
		ClipSkip:       DefaultClipSkip,
	}

	if req.Prompt == "" {
		return models.GenerationRequest{}, fmt.Errorf("%w: prompt must not be empty", ErrValidation)
	}

	if in.Sampler != "" {
		if !allowedSamplers[in.Sampler] {
			return models.GenerationRequest{}, fmt.Errorf("%w: sampler %q is not a known scheduler", ErrValidation, in.Sampler)
		}
		req.Sampler = in.Sampler
	}

	if in.Steps != nil {
		if *in.Steps < 1 || *in.Steps > 100 {
			return models.GenerationRequest{}, fmt.Errorf("%w: steps must be between 1 and 100, got %d", ErrValidation, *in.Steps)
		}
		req.Steps = *in.Steps
	}

	if in.CfgScale != nil {
		if *in.CfgScale < 1 || *in.CfgScale > 30 {
			return models.GenerationRequest{}, fmt.Errorf("%w: cfgScale must be between 1 and 30, got %g", ErrValidation, *in.CfgScale)
		}
		req.CfgScale = *in.CfgScale
	}

	if in.Width != nil {
		if err := checkDimension("width", *in.Width); err != nil {
			return models.GenerationRequest{}, err
		}
		req.Width = *in.Width
	}

	if in.Height != nil {
		if err := checkDimension("height", *in.Height); err != nil {
			return models.GenerationRequest{}, err
		}
		req.Height = *in.Height
	}

	if in.Seed != nil {
		if *in.Seed < RandomSeed {
			return models.GenerationRequest{}, fmt.Errorf("%w: seed must be -1 (random) or non-negative, got %d", ErrValidation, *in.Seed)
		}
		req.Seed = *in.Seed
	}

	if in.ClipSkip != nil {
		if *in.ClipSkip < 1 || *in.ClipSkip > 10 {
			return models.GenerationRequest{}, fmt.Errorf("%w: clipSkip must be between 1 and 10, got %d", ErrValidation, *in.ClipSkip)
		}
		req.ClipSkip = *in.ClipSkip
	}

	if len(in.AdditionalNetworks) > 0 {
		req.AdditionalNetworks = make(map[string]models.AdditionalNetwork, len(in.AdditionalNetworks))
		for air, network := range in.AdditionalNetworks {
			if strings.TrimSpace(air) == "" {
				return models.GenerationRequest{}, fmt.Errorf("%w: additional network identifier must not be empty", ErrValidation)
			}
			req.AdditionalNetworks[air] = network
		}
	}

	return req, nil
}

func checkDimension(field string, value int) error {
	if value < 64 || value > 1024 {
		return fmt.Errorf("%w: %s must be between 64 and 1024, got %d", ErrValidation, field, value)
	}
	if value%8 != 0 {
		return fmt.Errorf("%w: %s must be a multiple of 8, got %d", ErrValidation, field, value)
	}
	return nil
}

// OrchestrationInput converts a validated request into the wire form submitted
// to the orchestration API for the given target model.
func OrchestrationInput(req models.GenerationRequest, model string) models.TextToImageInput {
	return models.TextToImageInput{
		Model: model,
		Params: models.TextToImageParams{
			Prompt:         req.Prompt,
			NegativePrompt: req.NegativePrompt,
			Scheduler:      req.Sampler,
			Steps:          req.Steps,
			CfgScale:       req.CfgScale,
			Width:          req.Width,
			Height:         req.Height,
			Seed:           req.Seed,
			ClipSkip:       req.ClipSkip,
		},
		AdditionalNetworks: req.AdditionalNetworks,
	}
}
