package cmd

import (
	"fmt"
	"os"

	"go-civitai-generate/internal/database"
	"go-civitai-generate/internal/helpers"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past generations from the local history database",
	Run:   runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Maximum number of entries to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) {
	if globalConfig.DatabasePath == "" {
		log.Error("DatabasePath is not configured.")
		os.Exit(1)
	}

	db, err := database.Open(globalConfig.DatabasePath)
	if err != nil {
		log.WithError(err).Errorf("Failed to open history database at %s", globalConfig.DatabasePath)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Warn("Error closing history database")
		}
	}()

	records, err := db.ListGenerations()
	if err != nil {
		log.WithError(err).Error("Failed to list generation history")
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Println("No generations recorded yet.")
		return
	}

	if historyLimit > 0 && len(records) > historyLimit {
		records = records[:historyLimit]
	}

	for _, rec := range records {
		location := rec.RemoteURL
		if rec.LocalPath != "" {
			location = rec.LocalPath
		}
		fmt.Printf("%s  %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.ID)
		fmt.Printf("  prompt:  %s\n", rec.Request.Prompt)
		fmt.Printf("  result:  %s\n", location)
		if rec.SizeBytes > 0 {
			fmt.Printf("  size:    %s\n", helpers.BytesToSize(rec.SizeBytes))
		}
		fmt.Printf("  sampler: %s, steps %d, cfg %g, %dx%d, seed %d (%d polls, %dms)\n",
			rec.Request.Sampler, rec.Request.Steps, rec.Request.CfgScale,
			rec.Request.Width, rec.Request.Height, rec.Request.Seed, rec.Polls, rec.DurationMs)
	}
}
