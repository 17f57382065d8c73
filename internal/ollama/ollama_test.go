package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailhead-retreats/mediaingest/internal/providers"
	"github.com/trailhead-retreats/mediaingest/internal/retry"
)

func TestDescribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llava:13b", body["model"])
		assert.Equal(t, "classify", body["prompt"])
		assert.Equal(t, false, body["stream"])

		assert.Equal(t, []interface{}{base64.StdEncoding.EncodeToString([]byte("img"))}, body["images"])
		if options, ok := body["options"].(map[string]interface{}); assert.True(t, ok) {
			assert.EqualValues(t, 300, options["num_predict"])
		}

		_ = json.NewEncoder(w).Encode(map[string]string{"response": `{"category":"food"}`})
	}))
	defer server.Close()

	got, err := New(server.URL).Describe(context.Background(), providers.Request{
		Model:     "llava:13b",
		Prompt:    "classify",
		Image:     []byte("img"),
		MimeType:  "image/jpeg",
		MaxTokens: 300,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"category":"food"}`, got)
}

func TestDescribeErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{name: "model missing", status: http.StatusNotFound, permanent: true},
		{name: "server error", status: http.StatusInternalServerError, permanent: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			_, err := New(server.URL).Describe(context.Background(), providers.Request{Image: []byte("x")})
			require.Error(t, err)
			assert.Equal(t, tt.permanent, retry.IsPermanent(err))
		})
	}
}
