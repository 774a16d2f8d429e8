package cmd

import (
	"fmt"
	"os"
	"strings"

	index "go-civitai-generate/index"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search past generations in the Bleve index",
	Long: `Searches the full-text index built as generations complete. Supports the
Bleve query string syntax, e.g.:

  civitai-generate search castle
  civitai-generate search '+sampler:EulerA +prompt:portrait'`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	query := strings.Join(args, " ")
	indexPath := globalConfig.BleveIndexPath

	// Open instead of OpenOrCreateIndex so a search never creates an empty index.
	bleveIndex, err := bleve.Open(indexPath)
	if err != nil {
		if err == bleve.ErrorIndexPathDoesNotExist {
			log.Errorf("Search index not found at %s. Generate an image first to create it.", indexPath)
		} else {
			log.Errorf("Failed to open search index at %s: %v", indexPath, err)
		}
		os.Exit(1)
	}
	defer func() {
		if err := bleveIndex.Close(); err != nil {
			log.Errorf("Error closing search index: %v", err)
		}
	}()

	searchResults, err := index.SearchIndex(bleveIndex, query)
	if err != nil {
		log.Errorf("Error performing search: %v", err)
		os.Exit(1)
	}

	log.Debugf("Search finished. Hits: %d, Total: %d, Took: %s",
		len(searchResults.Hits), searchResults.Total, searchResults.Took)

	if searchResults.Total == 0 {
		fmt.Println("No results found matching your query.")
		return
	}

	fmt.Println("--- Search Results ---")
	for i, hit := range searchResults.Hits {
		fmt.Printf("[%d] ID: %s (Score: %.2f)\n", i+1, hit.ID, hit.Score)
		for field, value := range hit.Fields {
			fmt.Printf("  %s: %v\n", field, value)
		}
		fmt.Println("---")
	}
}
