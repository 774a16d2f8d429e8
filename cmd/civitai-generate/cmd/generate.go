package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go-civitai-generate/index"
	"go-civitai-generate/internal/api"
	"go-civitai-generate/internal/database"
	"go-civitai-generate/internal/downloader"
	"go-civitai-generate/internal/generation"
	"go-civitai-generate/internal/models"

	"github.com/google/uuid"
	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag variables for the generate command
var (
	promptFlag         string
	negativePromptFlag string
	samplerFlag        string
	stepsFlag          int
	cfgScaleFlag       float64
	widthFlag          int
	heightFlag         int
	seedFlag           int64
	clipSkipFlag       int
	networkFlags       []string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a single image from a text prompt",
	Long: `Submits a text-to-image job to the Civitai orchestration service and waits
for it to finish. With an output directory configured the image is downloaded
and the local path printed; otherwise the remote result URL is printed.

Examples:
  # Generate with defaults and print the remote URL
  civitai-generate generate -p "a castle at dusk, oil painting"

  # Download the result into ./images with a LoRA applied
  civitai-generate generate -p "portrait photo" --output-dir ./images \
    --network "urn:air:sd1:lora:civitai:123@456=0.8"`,
	Run: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&promptFlag, "prompt", "p", "", "Text prompt (required)")
	generateCmd.Flags().StringVarP(&negativePromptFlag, "negative-prompt", "n", "", "Negative prompt")
	generateCmd.Flags().StringVar(&samplerFlag, "sampler", "", "Sampler/scheduler (default EulerA)")
	generateCmd.Flags().IntVar(&stepsFlag, "steps", 0, "Sampling steps, 1-100 (default 20)")
	generateCmd.Flags().Float64Var(&cfgScaleFlag, "cfg-scale", 0, "Guidance scale, 1-30 (default 7)")
	generateCmd.Flags().IntVar(&widthFlag, "width", 0, "Image width, 64-1024 multiple of 8 (default 512)")
	generateCmd.Flags().IntVar(&heightFlag, "height", 0, "Image height, 64-1024 multiple of 8 (default 768)")
	generateCmd.Flags().Int64Var(&seedFlag, "seed", 0, "Generation seed, -1 for random (default -1)")
	generateCmd.Flags().IntVar(&clipSkipFlag, "clip-skip", 0, "CLIP skip, 1-10 (default 2)")
	generateCmd.Flags().StringArrayVar(&networkFlags, "network", nil,
		"Additional network as AIR[=strength][|triggerWord] (repeatable)")
	generateCmd.Flags().Bool("metadata", false, "Save a .json metadata file alongside the downloaded image. Overrides config.")

	if err := generateCmd.MarkFlagRequired("prompt"); err != nil {
		log.WithError(err).Error("Failed to mark prompt flag required")
	}

	// Bind flags to Viper
	viper.BindPFlag("generate.metadata", generateCmd.Flags().Lookup("metadata"))
	viper.BindPFlag("generate.sampler", generateCmd.Flags().Lookup("sampler"))
}

// buildRequestInput assembles the raw request from flags. Only flags the user
// actually set are passed on, so the validator applies the documented
// defaults for the rest.
func buildRequestInput(cmd *cobra.Command) (generation.RequestInput, error) {
	in := generation.RequestInput{
		Prompt:         promptFlag,
		NegativePrompt: negativePromptFlag,
		Sampler:        samplerFlag,
	}
	if cmd.Flags().Changed("steps") {
		in.Steps = &stepsFlag
	}
	if cmd.Flags().Changed("cfg-scale") {
		in.CfgScale = &cfgScaleFlag
	}
	if cmd.Flags().Changed("width") {
		in.Width = &widthFlag
	}
	if cmd.Flags().Changed("height") {
		in.Height = &heightFlag
	}
	if cmd.Flags().Changed("seed") {
		in.Seed = &seedFlag
	}
	if cmd.Flags().Changed("clip-skip") {
		in.ClipSkip = &clipSkipFlag
	}

	if len(networkFlags) > 0 {
		in.AdditionalNetworks = make(map[string]models.AdditionalNetwork, len(networkFlags))
		for _, spec := range networkFlags {
			air, network, err := parseNetworkSpec(spec)
			if err != nil {
				return generation.RequestInput{}, err
			}
			in.AdditionalNetworks[air] = network
		}
	}
	return in, nil
}

// parseNetworkSpec parses "AIR[=strength][|triggerWord]".
func parseNetworkSpec(spec string) (string, models.AdditionalNetwork, error) {
	var network models.AdditionalNetwork

	rest := spec
	if air, trigger, found := strings.Cut(spec, "|"); found {
		network.TriggerWord = strings.TrimSpace(trigger)
		rest = air
	}
	air := rest
	if name, strengthText, found := strings.Cut(rest, "="); found {
		strength, err := strconv.ParseFloat(strings.TrimSpace(strengthText), 64)
		if err != nil {
			return "", models.AdditionalNetwork{}, fmt.Errorf("invalid network strength in %q", spec)
		}
		network.Strength = &strength
		air = name
	}
	air = strings.TrimSpace(air)
	if air == "" {
		return "", models.AdditionalNetwork{}, fmt.Errorf("invalid network spec %q, expected AIR[=strength][|triggerWord]", spec)
	}
	return air, network, nil
}

func runGenerate(cmd *cobra.Command, args []string) {
	requireCredentials()

	in, err := buildRequestInput(cmd)
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}

	httpClient := &http.Client{
		Transport: globalHttpTransport,
		Timeout:   time.Duration(globalConfig.ApiClientTimeoutSec) * time.Second,
	}
	client := api.NewClient(globalConfig.ApiToken, httpClient)
	materializer := downloader.NewDownloader(
		&http.Client{Transport: globalHttpTransport, Timeout: 5 * time.Minute},
		globalConfig.ApiToken,
		globalConfig.OutputPath,
	)
	controller := generation.NewController(client, materializer, generation.Settings{
		Model:        globalConfig.Model,
		PollInterval: time.Duration(globalConfig.PollIntervalSec) * time.Second,
		PollDeadline: time.Duration(globalConfig.PollDeadlineSec) * time.Second,
	}, nil)

	writer := uilive.New()
	writer.Start()
	controller.OnPoll = func(polls int, elapsed time.Duration) {
		fmt.Fprintf(writer, "Waiting for job... (%d queries, %s elapsed)\n", polls, elapsed.Round(time.Second))
	}

	startedAt := time.Now()
	outcome, err := controller.Generate(in)
	writer.Stop()
	if err != nil {
		log.WithField("kind", generation.FailureKind(err)).Error(err)
		os.Exit(1)
	}

	record := models.GenerationRecord{
		ID:             uuid.New().String(),
		Token:          outcome.Token,
		Model:          globalConfig.Model,
		Request:        outcome.Request,
		RemoteURL:      outcome.Result.RemoteURL,
		LocalPath:      outcome.Result.LocalPath,
		ChecksumBLAKE3: outcome.Result.ChecksumBLAKE3,
		SizeBytes:      outcome.Result.SizeBytes,
		CreatedAt:      startedAt,
		DurationMs:     outcome.Elapsed.Milliseconds(),
		Polls:          outcome.Polls,
	}
	recordGeneration(record)

	if viper.GetBool("generate.metadata") || globalConfig.SaveMetadata {
		saveMetadataJSON(record)
	}

	// The result itself goes to stdout so it can be piped.
	output, err := json.Marshal(outcome.Result)
	if err != nil {
		log.WithError(err).Error("Failed to marshal result")
		os.Exit(1)
	}
	fmt.Println(string(output))
}

// recordGeneration persists the record in the history store and the search
// index. Bookkeeping failures are logged, not fatal: the image was produced.
func recordGeneration(record models.GenerationRecord) {
	if globalConfig.DatabasePath != "" {
		db, err := database.Open(globalConfig.DatabasePath)
		if err != nil {
			log.WithError(err).Warn("Could not open history database, skipping history entry")
		} else {
			if err := db.StoreGeneration(record); err != nil {
				log.WithError(err).Warn("Could not store history entry")
			}
			if err := db.Close(); err != nil {
				log.WithError(err).Warn("Error closing history database")
			}
		}
	}

	if globalConfig.BleveIndexPath != "" {
		bleveIndex, err := index.OpenOrCreateIndex(globalConfig.BleveIndexPath)
		if err != nil {
			log.WithError(err).Warn("Could not open search index, skipping index entry")
			return
		}
		defer func() {
			if err := bleveIndex.Close(); err != nil {
				log.WithError(err).Warn("Error closing search index")
			}
		}()

		item := index.Item{
			ID:             record.ID,
			Prompt:         record.Request.Prompt,
			NegativePrompt: record.Request.NegativePrompt,
			Sampler:        record.Request.Sampler,
			Model:          record.Model,
			Steps:          float64(record.Request.Steps),
			CfgScale:       record.Request.CfgScale,
			Width:          float64(record.Request.Width),
			Height:         float64(record.Request.Height),
			Seed:           float64(record.Request.Seed),
			LocalPath:      record.LocalPath,
			RemoteURL:      record.RemoteURL,
			CreatedAt:      record.CreatedAt,
		}
		if err := index.IndexItem(bleveIndex, item); err != nil {
			log.WithError(err).Warnf("Failed to index generation %s", record.ID)
		}
	}
}

// saveMetadataJSON writes the full record next to the downloaded image, or
// into the working directory in pass-through mode.
func saveMetadataJSON(record models.GenerationRecord) {
	var metadataPath string
	if record.LocalPath != "" {
		metadataPath = strings.TrimSuffix(record.LocalPath, filepath.Ext(record.LocalPath)) + ".json"
	} else {
		metadataPath = record.ID + ".json"
	}

	jsonData, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		log.WithError(err).Warnf("Failed to marshal metadata for %s", record.ID)
		return
	}
	if err := os.WriteFile(metadataPath, jsonData, 0644); err != nil {
		log.WithError(err).Warnf("Failed to write metadata file %s", metadataPath)
		return
	}
	log.Infof("Saved generation metadata to %s", metadataPath)
}
