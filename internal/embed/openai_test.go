package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingServer(t *testing.T, vector []float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		resp := map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": vector},
			},
			"model": "all-MiniLM-L6-v2",
			"usage": map[string]int{"prompt_tokens": 3, "total_tokens": 3},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestEmbedRejectsBlankInput(t *testing.T) {
	e := NewOpenAIEmbedder(OpenAIConfig{Model: "all-MiniLM-L6-v2"})
	_, err := e.Embed(context.Background(), "   \n\t")
	require.ErrorIs(t, err, ErrBlankInput)
}

func TestEmbedReturnsVector(t *testing.T) {
	srv := embeddingServer(t, []float32{0.1, 0.2, 0.3})
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIConfig{
		BaseURL:    srv.URL,
		Model:      "all-MiniLM-L6-v2",
		Dimensions: 3,
	})
	vec, err := e.Embed(context.Background(), "X is true")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbedRejectsDimensionMismatch(t *testing.T) {
	srv := embeddingServer(t, []float32{0.1, 0.2})
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIConfig{
		BaseURL:    srv.URL,
		Model:      "all-MiniLM-L6-v2",
		Dimensions: 384,
	})
	_, err := e.Embed(context.Background(), "X is true")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions")
}
