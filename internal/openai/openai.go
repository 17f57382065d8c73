package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/trailhead-retreats/mediaingest/internal/providers"
	"github.com/trailhead-retreats/mediaingest/internal/retry"
)

// OpenAI is a provider for OpenAI-compatible chat completion APIs
type OpenAI struct {
	api *openai.Client
}

// New returns a new OpenAI provider. baseURL may be empty.
func New(apiKey, baseURL string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAI{api: openai.NewClientWithConfig(cfg)}
}

// Describe sends the prompt and image as a multi-part user message
func (o *OpenAI) Describe(ctx context.Context, req providers.Request) (string, error) {
	dataURI := fmt.Sprintf("data:%s;base64,%s", req.MimeType, base64.StdEncoding.EncodeToString(req.Image))

	resp, err := o.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: req.Prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURI,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", classify(fmt.Errorf("openai api error: %w", err))
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned from OpenAI", providers.ErrEmptyResponse)
	}

	return resp.Choices[0].Message.Content, nil
}

// classify marks client errors that will not succeed on retry
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return retry.Permanent(err)
		}
	}
	return err
}
