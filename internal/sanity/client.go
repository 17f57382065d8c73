// Package sanity publishes assets and documents to a Sanity project over its
// HTTP API.
package sanity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/trailhead-retreats/mediaingest/internal/publish"
	"github.com/trailhead-retreats/mediaingest/internal/retry"
)

const (
	DefaultAPIVersion = "v2021-06-07"
	DocumentType      = "photo"
)

// Client is a publish.ContentStore backed by Sanity
type Client struct {
	baseURL    string
	apiVersion string
	dataset    string
	token      string
	HTTPClient *http.Client
}

// New creates a client for https://<projectID>.api.sanity.io
func New(projectID, dataset, token, apiVersion string) *Client {
	return NewWithBaseURL(fmt.Sprintf("https://%s.api.sanity.io", projectID), dataset, token, apiVersion)
}

// NewWithBaseURL creates a client against an explicit API host
func NewWithBaseURL(baseURL, dataset, token, apiVersion string) *Client {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &Client{
		baseURL:    baseURL,
		apiVersion: apiVersion,
		dataset:    dataset,
		token:      token,
		HTTPClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

type assetResponse struct {
	Document struct {
		ID  string `json:"_id"`
		URL string `json:"url"`
	} `json:"document"`
}

// UploadAsset posts the raw image bytes to the images asset endpoint
func (c *Client) UploadAsset(ctx context.Context, key publish.AssetKey, body io.Reader, size int64) (publish.Asset, error) {
	endpoint := fmt.Sprintf("%s/%s/assets/images/%s?filename=%s",
		c.baseURL, c.apiVersion, url.PathEscape(c.dataset), url.QueryEscape(key.Filename))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return publish.Asset{}, retry.Permanent(fmt.Errorf("failed to create upload request: %w", err))
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", key.ContentType)

	var out assetResponse
	if err := c.do(req, &out); err != nil {
		return publish.Asset{}, err
	}
	if out.Document.ID == "" {
		return publish.Asset{}, fmt.Errorf("asset upload returned no id")
	}

	return publish.Asset{ID: out.Document.ID, URL: out.Document.URL}, nil
}

type reference struct {
	Type string `json:"_type"`
	Ref  string `json:"_ref"`
}

type imageField struct {
	Type  string    `json:"_type"`
	Asset reference `json:"asset"`
}

type photoDocument struct {
	ID          string     `json:"_id"`
	Type        string     `json:"_type"`
	Image       imageField `json:"image"`
	Fingerprint string     `json:"fingerprint"`
	Filename    string     `json:"filename"`
	FolderPath  string     `json:"folderPath"`
	AltText     string     `json:"altText"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
	Confidence  string     `json:"confidence"`
	Country     string     `json:"country,omitempty"`
	CountryCode string     `json:"countryCode,omitempty"`
}

type mutation struct {
	CreateOrReplace photoDocument `json:"createOrReplace"`
}

type mutateResponse struct {
	TransactionID string `json:"transactionId"`
	Results       []struct {
		ID        string `json:"id"`
		Operation string `json:"operation"`
	} `json:"results"`
}

// CreateDocument writes a photo document that references the uploaded asset.
// createOrReplace keeps repeated publishes of the same document idempotent.
func (c *Client) CreateDocument(ctx context.Context, doc publish.Document) (string, error) {
	payload := map[string][]mutation{
		"mutations": {{
			CreateOrReplace: photoDocument{
				ID:   doc.ID,
				Type: DocumentType,
				Image: imageField{
					Type:  "image",
					Asset: reference{Type: "reference", Ref: doc.AssetID},
				},
				Fingerprint: doc.Fingerprint,
				Filename:    doc.Filename,
				FolderPath:  doc.FolderPath,
				AltText:     doc.AltText,
				Category:    string(doc.Category),
				Tags:        doc.Tags,
				Confidence:  string(doc.Confidence),
				Country:     doc.Country,
				CountryCode: doc.CountryCode,
			},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("failed to marshal mutation: %w", err))
	}

	endpoint := fmt.Sprintf("%s/%s/data/mutate/%s?returnIds=true", c.baseURL, c.apiVersion, url.PathEscape(c.dataset))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("failed to create mutate request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	var out mutateResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if len(out.Results) == 0 || out.Results[0].ID == "" {
		return "", fmt.Errorf("mutation %s returned no document id", out.TransactionID)
	}

	slog.Debug("Sanity mutation applied", "document_id", out.Results[0].ID, "operation", out.Results[0].Operation)
	return out.Results[0].ID, nil
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyStatus(&StatusError{Code: resp.StatusCode, Body: string(body)})
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// StatusError is a non-2xx answer from the API
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sanity returned status %d: %s", e.Code, e.Body)
}

// Timeouts, throttling and server errors may succeed on a later attempt.
// Every other client error is final.
func classifyStatus(err *StatusError) error {
	switch {
	case err.Code == http.StatusRequestTimeout,
		err.Code == http.StatusTooManyRequests,
		err.Code >= 500:
		return err
	default:
		return retry.Permanent(err)
	}
}
