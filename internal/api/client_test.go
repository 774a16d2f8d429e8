package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-civitai-generate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInput() models.TextToImageInput {
	return models.TextToImageInput{
		Model: "urn:air:sdxl:checkpoint:civitai:101055@128078",
		Params: models.TextToImageParams{
			Prompt:    "a fox",
			Scheduler: "EulerA",
			Steps:     20,
			CfgScale:  7,
			Width:     512,
			Height:    768,
			Seed:      -1,
			ClipSkip:  2,
		},
	}
}

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient("test-token", server.Client())
	client.BaseURL = server.URL
	return client, server
}

func TestSubmitTextToImage(t *testing.T) {
	var gotAuth string
	var gotBody models.JobRequest
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "false", r.URL.Query().Get("wait"))
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(models.JobStatusResponse{
			Token: "job-token-1",
			Jobs:  []models.JobRecord{{JobID: "j1", Scheduled: true}},
		})
	}))
	defer server.Close()

	token, err := client.SubmitTextToImage(testInput())

	require.NoError(t, err)
	assert.Equal(t, "job-token-1", token)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "textToImage", gotBody.Type)
	assert.Equal(t, "a fox", gotBody.Input.Params.Prompt)
}

func TestSubmitTextToImageMissingToken(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.JobStatusResponse{})
	}))
	defer server.Close()

	_, err := client.SubmitTextToImage(testInput())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoJobToken))
}

func TestSubmitTextToImageErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    error
	}{
		{"Unauthorized", http.StatusUnauthorized, `{"error":"bad token"}`, ErrUnauthorized},
		{"Forbidden", http.StatusForbidden, "", ErrUnauthorized},
		{"Rate limited", http.StatusTooManyRequests, "", ErrRateLimited},
		{"Server error", http.StatusBadGateway, "upstream down", ErrServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := client.SubmitTextToImage(testInput())

			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
			if tt.body != "" {
				assert.Contains(t, err.Error(), tt.body, "the response payload must be propagated")
			}
		})
	}
}

func TestJobStatus(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "job-token-1", r.URL.Query().Get("token"))
		json.NewEncoder(w).Encode(models.JobStatusResponse{
			Token: "job-token-1",
			Jobs: []models.JobRecord{{
				JobID:  "j1",
				Result: models.JobResult{Available: true, BlobURL: "https://x/img.png"},
			}},
		})
	}))
	defer server.Close()

	resp, err := client.JobStatus("job-token-1")

	require.NoError(t, err)
	require.Len(t, resp.Jobs, 1)
	assert.True(t, resp.Jobs[0].Result.Available)
	assert.Equal(t, "https://x/img.png", resp.Jobs[0].Result.BlobURL)
}

func TestJobStatusMalformedBody(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	_, err := client.JobStatus("job-token-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshalling")
}
