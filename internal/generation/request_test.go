package generation

import (
	"errors"
	"testing"

	"go-civitai-generate/internal/models"
)

func intPtr(v int) *int { return &v }

func int64Ptr(v int64) *int64 { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestBuildRequestDefaults(t *testing.T) {
	req, err := BuildRequest(RequestInput{Prompt: "a lighthouse in a storm"})
	if err != nil {
		t.Fatalf("BuildRequest returned unexpected error: %v", err)
	}

	if req.Prompt != "a lighthouse in a storm" {
		t.Errorf("Prompt = %q, want input prompt", req.Prompt)
	}
	if req.Sampler != DefaultSampler {
		t.Errorf("Sampler = %q, want %q", req.Sampler, DefaultSampler)
	}
	if req.Steps != DefaultSteps {
		t.Errorf("Steps = %d, want %d", req.Steps, DefaultSteps)
	}
	if req.CfgScale != DefaultCfgScale {
		t.Errorf("CfgScale = %g, want %d", req.CfgScale, DefaultCfgScale)
	}
	if req.Width != DefaultWidth || req.Height != DefaultHeight {
		t.Errorf("Dimensions = %dx%d, want %dx%d", req.Width, req.Height, DefaultWidth, DefaultHeight)
	}
	if req.Seed != RandomSeed {
		t.Errorf("Seed = %d, want %d", req.Seed, RandomSeed)
	}
	if req.ClipSkip != DefaultClipSkip {
		t.Errorf("ClipSkip = %d, want %d", req.ClipSkip, DefaultClipSkip)
	}
}

func TestBuildRequestBounds(t *testing.T) {
	tests := []struct {
		name    string
		input   RequestInput
		wantErr bool
	}{
		{"Valid full request", RequestInput{
			Prompt:   "portrait",
			Sampler:  "DPM2MKarras",
			Steps:    intPtr(30),
			CfgScale: floatPtr(9.5),
			Width:    intPtr(768),
			Height:   intPtr(1024),
			Seed:     int64Ptr(42),
			ClipSkip: intPtr(1),
		}, false},
		{"Empty prompt", RequestInput{Prompt: ""}, true},
		{"Whitespace prompt", RequestInput{Prompt: "   "}, true},
		{"Unknown sampler", RequestInput{Prompt: "x", Sampler: "TurboMax"}, true},
		{"Steps too low", RequestInput{Prompt: "x", Steps: intPtr(0)}, true},
		{"Steps too high", RequestInput{Prompt: "x", Steps: intPtr(101)}, true},
		{"Steps at upper bound", RequestInput{Prompt: "x", Steps: intPtr(100)}, false},
		{"CfgScale too low", RequestInput{Prompt: "x", CfgScale: floatPtr(0.5)}, true},
		{"CfgScale too high", RequestInput{Prompt: "x", CfgScale: floatPtr(30.5)}, true},
		{"Width below minimum", RequestInput{Prompt: "x", Width: intPtr(32)}, true},
		{"Width above maximum", RequestInput{Prompt: "x", Width: intPtr(1032)}, true},
		{"Width not multiple of 8", RequestInput{Prompt: "x", Width: intPtr(513)}, true},
		{"Height not multiple of 8", RequestInput{Prompt: "x", Height: intPtr(700)}, true},
		{"Height at bounds", RequestInput{Prompt: "x", Height: intPtr(1024)}, false},
		{"Seed below -1", RequestInput{Prompt: "x", Seed: int64Ptr(-2)}, true},
		{"Seed random", RequestInput{Prompt: "x", Seed: int64Ptr(-1)}, false},
		{"ClipSkip too high", RequestInput{Prompt: "x", ClipSkip: intPtr(11)}, true},
		{"Empty network identifier", RequestInput{
			Prompt:             "x",
			AdditionalNetworks: map[string]models.AdditionalNetwork{" ": {}},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := BuildRequest(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("BuildRequest(%+v) succeeded, want validation error", tt.input)
				}
				if !errors.Is(err, ErrValidation) {
					t.Errorf("BuildRequest error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildRequest(%+v) returned unexpected error: %v", tt.input, err)
			}

			// Out-of-range values must be rejected above, never clamped, so a
			// successful build always sits inside the documented bounds.
			if req.Steps < 1 || req.Steps > 100 {
				t.Errorf("Steps %d out of bounds", req.Steps)
			}
			if req.CfgScale < 1 || req.CfgScale > 30 {
				t.Errorf("CfgScale %g out of bounds", req.CfgScale)
			}
			for _, dim := range []int{req.Width, req.Height} {
				if dim < 64 || dim > 1024 || dim%8 != 0 {
					t.Errorf("Dimension %d out of bounds or not a multiple of 8", dim)
				}
			}
			if req.ClipSkip < 1 || req.ClipSkip > 10 {
				t.Errorf("ClipSkip %d out of bounds", req.ClipSkip)
			}
		})
	}
}

func TestBuildRequestKeepsNetworks(t *testing.T) {
	strength := 0.8
	req, err := BuildRequest(RequestInput{
		Prompt: "x",
		AdditionalNetworks: map[string]models.AdditionalNetwork{
			"urn:air:sd1:lora:civitai:123@456": {Strength: &strength, TriggerWord: "castle"},
		},
	})
	if err != nil {
		t.Fatalf("BuildRequest returned unexpected error: %v", err)
	}

	network, ok := req.AdditionalNetworks["urn:air:sd1:lora:civitai:123@456"]
	if !ok {
		t.Fatal("Additional network missing from built request")
	}
	if network.Strength == nil || *network.Strength != 0.8 {
		t.Errorf("Strength = %v, want 0.8", network.Strength)
	}
	if network.TriggerWord != "castle" {
		t.Errorf("TriggerWord = %q, want %q", network.TriggerWord, "castle")
	}
}

func TestOrchestrationInput(t *testing.T) {
	req, err := BuildRequest(RequestInput{Prompt: "a red fox", Sampler: "DDIM", Steps: intPtr(25)})
	if err != nil {
		t.Fatalf("BuildRequest returned unexpected error: %v", err)
	}

	input := OrchestrationInput(req, "urn:air:sdxl:checkpoint:civitai:101055@128078")
	if input.Model != "urn:air:sdxl:checkpoint:civitai:101055@128078" {
		t.Errorf("Model = %q, want target model", input.Model)
	}
	if input.Params.Prompt != "a red fox" || input.Params.Scheduler != "DDIM" || input.Params.Steps != 25 {
		t.Errorf("Params not carried over: %+v", input.Params)
	}
}
