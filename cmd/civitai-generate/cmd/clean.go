package cmd

import (
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove temporary (.tmp) files from the output directory",
	Long: `Recursively scans the configured OutputPath and removes any files ending
with the .tmp extension, left behind by interrupted downloads.`,
	Run: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) {
	outputPath := globalConfig.OutputPath
	if outputPath == "" {
		log.Error("OutputPath is not configured. Nothing to clean.")
		os.Exit(1)
	}

	info, err := os.Stat(outputPath)
	if os.IsNotExist(err) {
		log.Errorf("Output directory does not exist: %s", outputPath)
		os.Exit(1)
	}
	if err != nil {
		log.Errorf("Error accessing output directory %q: %v", outputPath, err)
		os.Exit(1)
	}
	if !info.IsDir() {
		log.Errorf("OutputPath is not a directory: %s", outputPath)
		os.Exit(1)
	}

	log.Infof("Scanning for .tmp files in %s...", outputPath)

	var removed, failed int64
	walkErr := filepath.Walk(outputPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Warnf("Error accessing path %q during scan: %v", path, err)
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(info.Name()), ".tmp") {
			return nil
		}

		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				log.Warnf("Attempted to remove %q, but it was already gone.", path)
			} else {
				log.Errorf("Failed to remove %q: %v", path, err)
				failed++
			}
			return nil
		}
		log.Infof("Removed temporary file: %s", path)
		removed++
		return nil
	})
	if walkErr != nil {
		log.Errorf("Error scanning output directory: %v", walkErr)
		os.Exit(1)
	}

	log.Infof("Clean finished. Removed %d file(s), %d failure(s).", removed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
