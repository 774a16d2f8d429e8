package cmd

import (
	"bufio"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"go-civitai-generate/internal/api"
	"go-civitai-generate/internal/downloader"
	"go-civitai-generate/internal/generation"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// generateImageTool is the single capability the host registers.
const generateImageTool = "generate_image"

// toolRequest is one JSON line read from stdin.
type toolRequest struct {
	ID        json.RawMessage         `json:"id"`
	Tool      string                  `json:"tool"`
	Arguments generation.RequestInput `json:"arguments"`
}

type toolError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// toolResponse is one JSON line written to stdout.
type toolResponse struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result interface{}     `json:"result,omitempty"`
	Error  *toolError      `json:"error,omitempty"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the generate_image capability over stdio",
	Long: `Runs a line-oriented JSON tool host on stdin/stdout. Each request line has
the shape {"id": ..., "tool": "generate_image", "arguments": {...}} and yields
exactly one response line carrying either a result ({"remoteUrl": ...} or
{"path": ...}) or an error with a kind marker. A bad request never crashes the
host.`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	// Missing credentials are fatal before the capability is ever offered.
	requireCredentials()

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

	log.Infof("Tool host ready, capability %q registered", generateImageTool)

	encoder := json.NewEncoder(os.Stdout)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req toolRequest
		if err := json.Unmarshal(line, &req); err != nil {
			writeResponse(encoder, toolResponse{
				Error: &toolError{Kind: "bad_request", Message: "request is not valid JSON: " + err.Error()},
			})
			continue
		}

		writeResponse(encoder, handleToolRequest(controller, req))
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).Error("Error reading tool requests")
		os.Exit(1)
	}
	log.Info("Input closed, tool host exiting")
}

// handleToolRequest runs one capability invocation. Every failure resolves to
// a structured error result; nothing escapes uncaught.
func handleToolRequest(controller *generation.Controller, req toolRequest) toolResponse {
	if req.Tool != generateImageTool {
		return toolResponse{ID: req.ID, Error: &toolError{
			Kind:    "unknown_tool",
			Message: "unknown tool " + req.Tool + ", only " + generateImageTool + " is registered",
		}}
	}

	outcome, err := controller.Generate(req.Arguments)
	if err != nil {
		log.WithField("kind", generation.FailureKind(err)).Warnf("Tool invocation failed: %v", err)
		return toolResponse{ID: req.ID, Error: &toolError{
			Kind:    generation.FailureKind(err),
			Message: err.Error(),
		}}
	}

	log.Infof("Tool invocation finished after %d queries in %s", outcome.Polls, outcome.Elapsed.Round(time.Millisecond))
	return toolResponse{ID: req.ID, Result: outcome.Result}
}

func writeResponse(encoder *json.Encoder, resp toolResponse) {
	if err := encoder.Encode(resp); err != nil {
		log.WithError(err).Error("Failed to write tool response")
	}
}
