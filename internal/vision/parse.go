package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/trailhead-retreats/mediaingest/internal/models"
)

// Tag count bounds. Responses with fewer distinct tags are rejected; extra
// tags are dropped.
const (
	MinTags = 3
	MaxTags = 8
)

// ErrMalformedResponse is returned when the model output does not match the
// ClassificationResult shape.
var ErrMalformedResponse = errors.New("malformed classification response")

var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)\\n?```")

type response struct {
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	AltText    string   `json:"altText"`
	AltTextAlt string   `json:"alt_text"`
	Confidence string   `json:"confidence"`
}

// ParseResponse turns raw model output into a validated result. The JSON may
// be bare or wrapped in a markdown code fence.
func ParseResponse(content string) (models.ClassificationResult, error) {
	content = strings.TrimSpace(content)

	resp, err := decode(content)
	if err != nil {
		return models.ClassificationResult{}, err
	}

	return validate(resp)
}

func decode(content string) (response, error) {
	var resp response
	if err := unmarshalStrict(content, &resp); err == nil {
		return resp, nil
	}

	matches := jsonBlockRegex.FindStringSubmatch(content)
	if len(matches) >= 2 {
		cleaned := strings.TrimSpace(matches[1])
		if err := unmarshalStrict(cleaned, &resp); err != nil {
			return resp, fmt.Errorf("%w: fenced content is not valid JSON: %v", ErrMalformedResponse, err)
		}
		return resp, nil
	}

	return resp, fmt.Errorf("%w: not valid JSON: %s", ErrMalformedResponse, truncate(content, 200))
}

func unmarshalStrict(content string, resp *response) error {
	if !strings.HasPrefix(content, "{") {
		return errors.New("not a JSON object")
	}
	return json.Unmarshal([]byte(content), resp)
}

func validate(resp response) (models.ClassificationResult, error) {
	category := models.Category(strings.ToLower(strings.TrimSpace(resp.Category)))
	if !category.Valid() {
		return models.ClassificationResult{}, fmt.Errorf("%w: unknown category %q", ErrMalformedResponse, resp.Category)
	}

	confidence := models.Confidence(strings.ToLower(strings.TrimSpace(resp.Confidence)))
	if !confidence.Valid() {
		return models.ClassificationResult{}, fmt.Errorf("%w: unknown confidence %q", ErrMalformedResponse, resp.Confidence)
	}

	alt := strings.TrimSpace(resp.AltText)
	if alt == "" {
		alt = strings.TrimSpace(resp.AltTextAlt)
	}
	if alt == "" {
		return models.ClassificationResult{}, fmt.Errorf("%w: missing altText", ErrMalformedResponse)
	}

	tags := normalizeTags(resp.Tags)
	if len(tags) < MinTags {
		return models.ClassificationResult{}, fmt.Errorf("%w: %d tags, want at least %d", ErrMalformedResponse, len(tags), MinTags)
	}

	return models.ClassificationResult{
		Category:   category,
		Tags:       tags,
		AltText:    alt,
		Confidence: confidence,
	}, nil
}

// normalizeTags lowercases, trims and dedupes while keeping order
func normalizeTags(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	tags := make([]string, 0, len(raw))

	for _, t := range raw {
		t = strings.Join(strings.Fields(strings.ToLower(t)), " ")
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
		if len(tags) == MaxTags {
			break
		}
	}
	return tags
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
