package index

import (
	"log"
	"os"
	"time"

	"github.com/blevesearch/bleve/v2"
)

const defaultIndexPath = "generations.bleve"

// Item represents one generation in the search index. All fields are indexed
// and searchable under their lowercase JSON tag names (e.g. the query
// '+sampler:EulerA' or '+prompt:castle').
type Item struct {
	ID             string    `json:"id"`                       // History record ID
	Prompt         string    `json:"prompt"`                   // Positive prompt text
	NegativePrompt string    `json:"negativePrompt,omitempty"` // Negative prompt text
	Sampler        string    `json:"sampler,omitempty"`        // Scheduler used
	Model          string    `json:"model,omitempty"`          // Target model identifier (AIR)
	Steps          float64   `json:"steps,omitempty"`
	CfgScale       float64   `json:"cfgScale,omitempty"`
	Width          float64   `json:"width,omitempty"`
	Height         float64   `json:"height,omitempty"`
	Seed           float64   `json:"seed,omitempty"`
	LocalPath      string    `json:"localPath,omitempty"` // Where the image was materialized
	RemoteURL      string    `json:"remoteUrl,omitempty"` // Remote blob URL
	CreatedAt      time.Time `json:"createdAt,omitempty"`
}

// OpenOrCreateIndex opens an existing Bleve index or creates a new one if it
// doesn't exist.
func OpenOrCreateIndex(indexPath string) (bleve.Index, error) {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}

	idx, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		log.Printf("Creating new index at: %s", indexPath)
		mapping := bleve.NewIndexMapping()
		idx, err = bleve.New(indexPath, mapping)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		log.Printf("Opened existing index at: %s", indexPath)
	}
	return idx, nil
}

// IndexItem adds or updates an item in the index.
func IndexItem(idx bleve.Index, item Item) error {
	return idx.Index(item.ID, item)
}

// SearchIndex performs a query-string search against the index.
func SearchIndex(idx bleve.Index, query string) (*bleve.SearchResult, error) {
	searchQuery := bleve.NewQueryStringQuery(query)
	searchRequest := bleve.NewSearchRequest(searchQuery)
	searchRequest.Fields = []string{"*"}
	return idx.Search(searchRequest)
}

// DeleteIndex removes the index directory. Use with caution!
func DeleteIndex(indexPath string) error {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}
	log.Printf("Attempting to delete index at: %s", indexPath)
	return os.RemoveAll(indexPath)
}
