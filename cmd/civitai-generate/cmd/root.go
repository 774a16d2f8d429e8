package cmd

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-civitai-generate/internal/api"
	"go-civitai-generate/internal/config"
	"go-civitai-generate/internal/models"
)

// cfgFile holds the path to the config file specified by the user
var cfgFile string

// logApiFlag holds the value of the --log-api flag
var logApiFlag bool

// outputDirFlag holds the value of the --output-dir flag
var outputDirFlag string

// apiTimeoutFlag holds the value of the --api-timeout flag
var apiTimeoutFlag int

// envPairs holds KEY=VALUE overrides from the -e flag
var envPairs []string

// logLevel and logFormat configure logrus before any command runs
var logLevel string
var logFormat string

// globalConfig holds the loaded configuration
var globalConfig models.Config

// globalHttpTransport holds the globally configured HTTP transport (base or logging-wrapped)
var globalHttpTransport http.RoundTripper

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "civitai-generate",
	Short: "Generate images through the Civitai orchestration API",
	Long: `Civitai Generate submits text-to-image jobs to the Civitai orchestration
service, waits for them to finish and either prints the remote result URL or
downloads the image into a local output directory. It can also serve the
capability as a stdio tool, and keeps a searchable local history of past
generations.`,
	PersistentPreRunE: loadGlobalConfig, // Load config before any command runs
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Close the API logging transport if it was initialized
	defer func() {
		if loggingTransport, ok := globalHttpTransport.(*api.LoggingTransport); ok && loggingTransport != nil {
			if err := loggingTransport.Close(); err != nil {
				log.WithError(err).Error("Error closing API log file")
			}
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.toml", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&logApiFlag, "log-api", false, "Log API requests/responses to api.log (overrides config)")
	rootCmd.PersistentFlags().StringVar(&outputDirFlag, "output-dir", "", "Directory to save generated images (overrides config; empty keeps remote URLs)")
	rootCmd.PersistentFlags().IntVar(&apiTimeoutFlag, "api-timeout", -1, "Timeout for API HTTP client in seconds (overrides config, -1 uses config default)")
	rootCmd.PersistentFlags().StringArrayVarP(&envPairs, "env", "e", nil, "Configuration override as KEY=VALUE (repeatable, takes precedence over environment)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Logging format (text, json)")

	// Hook to configure logging before any command runs
	cobra.OnInitialize(initLogging)
}

// initLogging configures logrus based on persistent flags
func initLogging() {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.WithError(err).Warnf("Invalid log level '%s', using default 'info'", logLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	switch logFormat {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		log.Warnf("Invalid log format '%s', using default 'text'", logFormat)
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// loadGlobalConfig loads the config file, overlays environment variables and
// -e pairs (command line wins), applies flag overrides and sets up the global
// HTTP transport.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		// Not fatal: the environment or -e pairs may carry everything a
		// command needs. Commands validate the fields they require.
		log.WithError(err).Debugf("No usable configuration file at %s", cfgFile)
	}

	config.ApplyEnv(&cfg)

	for _, pair := range envPairs {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return fmt.Errorf("invalid -e override %q, expected KEY=VALUE", pair)
		}
		if err := config.ApplyPair(&cfg, key, value); err != nil {
			return err
		}
	}

	// Flag overrides beat everything else.
	if cmd.Flags().Changed("output-dir") {
		cfg.OutputPath = outputDirFlag
	}
	if cmd.Flags().Changed("api-timeout") {
		if apiTimeoutFlag > 0 {
			cfg.ApiClientTimeoutSec = apiTimeoutFlag
		} else {
			log.Warnf("--api-timeout flag provided with invalid value %d, using config value", apiTimeoutFlag)
		}
	}
	if cmd.Flags().Changed("log-api") {
		cfg.LogApiRequests = logApiFlag
	}

	config.ApplyDefaults(&cfg)
	globalConfig = cfg

	// --- Setup Global HTTP Transport ---
	globalHttpTransport = http.DefaultTransport
	if globalConfig.LogApiRequests {
		logFilePath := "api.log"
		log.Infof("API logging to file: %s", logFilePath)
		loggingTransport, err := api.NewLoggingTransport(http.DefaultTransport, logFilePath)
		if err != nil {
			log.WithError(err).Error("Failed to initialize API logging transport, logging disabled.")
		} else {
			globalHttpTransport = loggingTransport
		}
	}

	return nil
}

// requireCredentials exits non-zero when the API token or model is missing.
// Commands that submit jobs call this before doing anything else.
func requireCredentials() {
	if err := config.Validate(globalConfig); err != nil {
		log.Errorf("%v (set %s and %s, or use a config file / -e overrides)",
			err, config.EnvApiToken, config.EnvModel)
		os.Exit(1)
	}
}
