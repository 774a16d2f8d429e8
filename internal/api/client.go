package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-civitai-generate/internal/models"

	log "github.com/sirupsen/logrus"
)

// Custom Error Types
var (
	ErrRateLimited  = errors.New("API rate limit exceeded")
	ErrUnauthorized = errors.New("API request unauthorized (check API token)")
	ErrServerError  = errors.New("API server error")
	ErrNoJobToken   = errors.New("submission accepted but no job token was returned")
)

// OrchestratorBaseUrl is the CivitAI orchestration endpoint that runs
// generation jobs.
const OrchestratorBaseUrl = "https://orchestration.civitai.com"

// Client struct for interacting with the orchestration API.
type Client struct {
	BaseURL    string
	ApiToken   string
	HttpClient *http.Client // Use a shared client
}

// NewClient creates a new orchestration API client.
func NewClient(apiToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		BaseURL:    OrchestratorBaseUrl,
		ApiToken:   apiToken,
		HttpClient: httpClient,
	}
}

// SubmitTextToImage submits a text-to-image job in non-blocking mode and
// returns the job token. A successful response without a token is a service
// contract violation and is reported via ErrNoJobToken; it is never retried.
func (c *Client) SubmitTextToImage(input models.TextToImageInput) (string, error) {
	payload, err := json.Marshal(models.JobRequest{Type: "textToImage", Input: input})
	if err != nil {
		return "", fmt.Errorf("error marshalling job request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/consumer/jobs?wait=false", c.BaseURL)
	log.Debugf("Submitting job to %s", reqURL)

	req, err := http.NewRequest("POST", reqURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	c.setHeaders(req)

	var response models.JobStatusResponse
	if err := c.do(req, &response); err != nil {
		return "", err
	}

	if response.Token == "" {
		return "", ErrNoJobToken
	}
	return response.Token, nil
}

// JobStatus fetches the current status of a submitted job by its token. Each
// call returns a fresh authoritative reading; nothing is cached.
func (c *Client) JobStatus(token string) (models.JobStatusResponse, error) {
	values := url.Values{}
	values.Add("token", token)
	values.Add("detailed", "false")
	reqURL := fmt.Sprintf("%s/v1/consumer/jobs?%s", c.BaseURL, values.Encode())

	req, err := http.NewRequest("GET", reqURL, nil)
	if err != nil {
		return models.JobStatusResponse{}, fmt.Errorf("error creating request: %w", err)
	}
	c.setHeaders(req)

	var response models.JobStatusResponse
	if err := c.do(req, &response); err != nil {
		return models.JobStatusResponse{}, err
	}
	return response, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.ApiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.ApiToken)
	}
}

// do executes the request and decodes the JSON response into out. Non-2xx
// statuses are mapped onto the package error types with any structured error
// payload from the body appended.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.HttpClient.Do(req)
	if err != nil {
		log.WithError(err).Errorf("HTTP request to %s failed", req.URL)
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := strings.TrimSpace(string(body))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			err = ErrRateLimited
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			err = ErrUnauthorized
		case resp.StatusCode >= 500:
			err = fmt.Errorf("%w (status code %d)", ErrServerError, resp.StatusCode)
		default:
			err = fmt.Errorf("API request failed with status %d", resp.StatusCode)
		}
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		log.WithField("status", resp.StatusCode).Debugf("API error response: %s", detail)
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		log.WithError(err).Error("Error unmarshalling response JSON")
		log.Debugf("Response body causing unmarshal error: %s", string(body))
		return fmt.Errorf("error unmarshalling response JSON: %w", err)
	}
	return nil
}
