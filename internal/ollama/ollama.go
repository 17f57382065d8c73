package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/trailhead-retreats/mediaingest/internal/providers"
	"github.com/trailhead-retreats/mediaingest/internal/retry"
)

// Ollama is a provider for a local Ollama server
type Ollama struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a new Ollama provider
func New(baseURL string) *Ollama {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Ollama{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// Describe calls /api/generate with the image attached
func (o *Ollama) Describe(ctx context.Context, req providers.Request) (string, error) {
	options := map[string]interface{}{
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	requestBody, err := json.Marshal(map[string]interface{}{
		"model":   req.Model,
		"prompt":  req.Prompt,
		"images":  []string{base64.StdEncoding.EncodeToString(req.Image)},
		"stream":  false,
		"format":  "json",
		"options": options,
	})
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("failed to marshal request body: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewBuffer(requestBody))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("failed to create new request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
			return "", retry.Permanent(err)
		}
		return "", err
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}
	if response.Response == "" {
		return "", providers.ErrEmptyResponse
	}

	return response.Response, nil
}
