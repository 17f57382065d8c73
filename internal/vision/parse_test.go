package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailhead-retreats/mediaingest/internal/models"
)

func TestParseResponseValid(t *testing.T) {
	expected := models.ClassificationResult{
		Category:   models.CategoryActivity,
		Tags:       []string{"surfing", "wave", "ocean"},
		AltText:    "A surfer riding a small wave",
		Confidence: models.ConfidenceHigh,
	}

	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "bare json",
			content: `{"category":"activity","tags":["surfing","wave","ocean"],"altText":"A surfer riding a small wave","confidence":"high"}`,
		},
		{
			name: "json fence",
			content: "```json\n" +
				`{"category":"activity","tags":["surfing","wave","ocean"],"altText":"A surfer riding a small wave","confidence":"high"}` +
				"\n```",
		},
		{
			name: "plain fence with surrounding prose",
			content: "Here is the classification:\n```\n" +
				`{"category":"activity","tags":["surfing","wave","ocean"],"altText":"A surfer riding a small wave","confidence":"high"}` +
				"\n```\nLet me know if you need more.",
		},
		{
			name:    "whitespace and casing",
			content: "  \n" + `{"category":" Activity ","tags":["Surfing","  wave ","OCEAN","surfing"],"altText":" A surfer riding a small wave ","confidence":"HIGH"}` + "\n",
		},
		{
			name:    "snake case alt text",
			content: `{"category":"activity","tags":["surfing","wave","ocean"],"alt_text":"A surfer riding a small wave","confidence":"high"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseResponse(tt.content)
			require.NoError(t, err)
			assert.Equal(t, expected, result)
		})
	}
}

func TestParseResponseMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty", content: ""},
		{name: "prose", content: "This image shows a beach."},
		{name: "broken fence", content: "```json\n{\"category\": \n```"},
		{name: "unknown category", content: `{"category":"landscape","tags":["a"],"altText":"x","confidence":"high"}`},
		{name: "unknown confidence", content: `{"category":"food","tags":["a"],"altText":"x","confidence":"sure"}`},
		{name: "missing alt text", content: `{"category":"food","tags":["a"],"confidence":"low"}`},
		{name: "no tags", content: `{"category":"food","tags":[],"altText":"x","confidence":"low"}`},
		{name: "blank tags", content: `{"category":"food","tags":["  ",""],"altText":"x","confidence":"low"}`},
		{name: "two tags", content: `{"category":"food","tags":["tacos","lunch"],"altText":"x","confidence":"low"}`},
		{name: "duplicates leave two tags", content: `{"category":"food","tags":["tacos","Tacos","lunch"],"altText":"x","confidence":"low"}`},
		{name: "array", content: `[{"category":"food"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse(tt.content)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestParseResponseCapsTags(t *testing.T) {
	content := `{"category":"social","tags":["a","b","c","d","e","f","g","h","i","j"],"altText":"Friends","confidence":"medium"}`

	result, err := ParseResponse(content)
	require.NoError(t, err)
	assert.Len(t, result.Tags, MaxTags)
	assert.Equal(t, "a", result.Tags[0])
	assert.Equal(t, "h", result.Tags[7])
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t,
		[]string{"palm trees", "beach"},
		normalizeTags([]string{"Palm   Trees", "beach", "palm trees", ""}))
}
