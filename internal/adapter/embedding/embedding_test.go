package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

func fakeOpenAI(t *testing.T, calls *int32, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"), r.URL.Path)
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}

		var req embeddingsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]any, len(req.Input))
		for i, in := range req.Input {
			// Reverse order to check the adapter honours the index field.
			j := len(req.Input) - 1 - i
			data[j] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{float64(len(in)), 1},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	var calls int32
	srv := fakeOpenAI(t, &calls, http.StatusOK)
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1/", BatchSize: 2, Dimension: 2})
	require.NoError(t, err)

	vectors, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{1, 1}, vectors[0])
	assert.Equal(t, []float32{2, 1}, vectors[1])
	assert.Equal(t, []float32{3, 1}, vectors[2])
}

func TestOpenAIEmbedder_EmbedMatchesBatch(t *testing.T) {
	var calls int32
	srv := fakeOpenAI(t, &calls, http.StatusOK)
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)

	single, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	batch, err := e.EmbedBatch(context.Background(), []string{"hello"})
	require.NoError(t, err)

	assert.Equal(t, batch[0], single)
}

func TestOpenAIEmbedder_ProviderErrorIsTransient(t *testing.T) {
	var calls int32
	srv := fakeOpenAI(t, &calls, http.StatusInternalServerError)
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)

	_, err = e.EmbedBatch(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransientProvider)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "gateway must not retry")
}

func TestNewOpenAIEmbedder_Defaults(t *testing.T) {
	_, err := NewOpenAIEmbedder(OpenAIConfig{})
	assert.Error(t, err)

	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "k", Model: "text-embedding-3-large"})
	require.NoError(t, err)
	assert.Equal(t, 3072, e.Dimension())
	assert.Equal(t, "text-embedding-3-large", e.ModelName())

	o, err := NewOllamaEmbedder("nomic-embed-text", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 768, o.Dimension())
}

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "blood pressure medication")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "medications for blood pressure")
	require.NoError(t, err)
	c, err := e.Embed(ctx, "quarterly revenue forecast")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Greater(t, cosine(a, b), cosine(a, c))
	assert.InDelta(t, 1.0, cosine(a, a), 1e-6)

	batch, err := e.EmbedBatch(ctx, []string{"blood pressure medication"})
	require.NoError(t, err)
	assert.Equal(t, a, batch[0])
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
