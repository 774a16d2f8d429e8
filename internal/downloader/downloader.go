package downloader

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go-civitai-generate/internal/helpers"
	"go-civitai-generate/internal/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"lukechampine.com/blake3"
)

// Custom Downloader Errors
var (
	ErrDownload = errors.New("result download error")
	ErrStorage  = errors.New("result storage error")
)

// OutputExtension is the extension given to every materialized image. The
// orchestration service always returns PNG blobs for text-to-image jobs.
const OutputExtension = ".png"

// Downloader materializes remote generation results. With no output directory
// configured it passes the remote URL through untouched; otherwise it fetches
// the blob and persists it under a fresh unique filename.
type Downloader struct {
	client    *http.Client
	apiToken  string
	outputDir string
}

// NewDownloader creates a Downloader. A nil client falls back to a default
// with a generous timeout for large blobs. An empty outputDir selects
// pass-through mode.
func NewDownloader(client *http.Client, apiToken string, outputDir string) *Downloader {
	if client == nil {
		client = &http.Client{
			Timeout: 5 * time.Minute,
		}
	}
	return &Downloader{
		client:    client,
		apiToken:  apiToken,
		outputDir: outputDir,
	}
}

// Materialize resolves a remote result URL into the final result. Each call
// with persistence enabled produces a distinct file, even for identical
// content; filenames are never reused or content-addressed.
func (d *Downloader) Materialize(remoteURL string) (models.MaterializedResult, error) {
	if d.outputDir == "" {
		log.Debugf("No output directory configured, returning remote URL: %s", remoteURL)
		return models.MaterializedResult{RemoteURL: remoteURL}, nil
	}

	// MkdirAll is a no-op for an existing directory, so concurrent
	// materializations into the same directory cannot trip each other here.
	if !helpers.CheckAndMakeDir(d.outputDir) {
		return models.MaterializedResult{}, fmt.Errorf("%w: failed to create output directory %s", ErrStorage, d.outputDir)
	}

	body, err := d.fetch(remoteURL)
	if err != nil {
		return models.MaterializedResult{}, err
	}

	checksum := blake3.Sum256(body)
	filename := uuid.New().String() + OutputExtension
	targetPath := filepath.Join(d.outputDir, filename)

	// Write through a temp file so an interrupted write never leaves a
	// half-written image under the final name.
	tempPath := targetPath + ".tmp"
	if err := os.WriteFile(tempPath, body, 0644); err != nil {
		log.WithError(err).Errorf("Error writing temporary file %s", tempPath)
		return models.MaterializedResult{}, fmt.Errorf("%w: writing %s: %v", ErrStorage, tempPath, err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		log.WithError(err).Errorf("Error renaming %s to %s", tempPath, targetPath)
		if removeErr := os.Remove(tempPath); removeErr != nil && !os.IsNotExist(removeErr) {
			log.WithError(removeErr).Warnf("Failed to remove temporary file %s", tempPath)
		}
		return models.MaterializedResult{}, fmt.Errorf("%w: renaming %s: %v", ErrStorage, tempPath, err)
	}

	log.Infof("Materialized result to %s (%s)", targetPath, helpers.BytesToSize(uint64(len(body))))
	return models.MaterializedResult{
		LocalPath:      targetPath,
		ChecksumBLAKE3: hex.EncodeToString(checksum[:]),
		SizeBytes:      uint64(len(body)),
	}, nil
}

// fetch downloads the blob into memory.
func (d *Downloader) fetch(remoteURL string) ([]byte, error) {
	req, err := http.NewRequest("GET", remoteURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request for %s: %v", ErrDownload, remoteURL, err)
	}
	if d.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiToken)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		log.WithError(err).Errorf("Error fetching result from %s", remoteURL)
		return nil, fmt.Errorf("%w: fetching %s: %v", ErrDownload, remoteURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: received status %d from %s", ErrDownload, resp.StatusCode, remoteURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body from %s: %v", ErrDownload, remoteURL, err)
	}
	return body, nil
}
