package providers

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the model answers with no usable content
var ErrEmptyResponse = errors.New("empty response from provider")

// Request is a single vision prompt with one attached image
type Request struct {
	Model       string
	Prompt      string
	Image       []byte
	MimeType    string
	MaxTokens   int
	Temperature float64
}

// Provider defines the interface for a vision-capable LLM provider
type Provider interface {
	Describe(ctx context.Context, req Request) (string, error)
}
