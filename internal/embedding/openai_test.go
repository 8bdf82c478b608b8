package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

// fakeOpenAI answers /v1/embeddings; respond builds the data array for one request.
func fakeOpenAI(t *testing.T, respond func(req embeddingRequest, call int) (int, any)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		call := int(calls.Add(1))
		status, body := respond(req, call)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func okBody(vectors ...[]float32) map[string]any {
	data := make([]map[string]any, len(vectors))
	for i, v := range vectors {
		data[i] = map[string]any{"object": "embedding", "index": i, "embedding": v}
	}
	return map[string]any{"object": "list", "data": data, "model": "text-embedding-3-small"}
}

func errorBody(msg string) map[string]any {
	return map[string]any{"error": map[string]any{"message": msg, "type": "server_error"}}
}

func testConfig(baseURL string) *config.EmbeddingConfig {
	return &config.EmbeddingConfig{
		Provider:   "openai",
		Model:      "text-embedding-3-small",
		APIKeyEnv:  "SHIORI_TEST_OPENAI_KEY",
		BaseURL:    baseURL + "/v1",
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	srv, calls := fakeOpenAI(t, func(req embeddingRequest, _ int) (int, any) {
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, []string{"vat rate"}, req.Input)
		return http.StatusOK, okBody([]float32{0.1, 0.2, 0.3})
	})
	e, err := NewOpenAIEmbedder(testConfig(srv.URL), nil)
	require.NoError(t, err)

	v, err := e.Embed(context.Background(), "vat rate")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, v)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 1536, e.Dimensions())
}

func TestOpenAIEmbedder_BatchOrderedByIndex(t *testing.T) {
	srv, _ := fakeOpenAI(t, func(req embeddingRequest, _ int) (int, any) {
		return http.StatusOK, map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 1, "embedding": []float32{2}},
				{"object": "embedding", "index": 0, "embedding": []float32{1}},
			},
		}
	})
	e, err := NewOpenAIEmbedder(testConfig(srv.URL), nil)
	require.NoError(t, err)
	out, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, out)
}

func TestOpenAIEmbedder_RetriesServerErrors(t *testing.T) {
	srv, calls := fakeOpenAI(t, func(_ embeddingRequest, call int) (int, any) {
		if call < 3 {
			return http.StatusInternalServerError, errorBody("overloaded")
		}
		return http.StatusOK, okBody([]float32{1, 0})
	})
	e, err := NewOpenAIEmbedder(testConfig(srv.URL), nil)
	require.NoError(t, err)
	v, err := e.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)
	assert.EqualValues(t, 3, calls.Load())
}

func TestOpenAIEmbedder_DoesNotRetryClientErrors(t *testing.T) {
	srv, calls := fakeOpenAI(t, func(embeddingRequest, int) (int, any) {
		return http.StatusUnauthorized, errorBody("bad key")
	})
	e, err := NewOpenAIEmbedder(testConfig(srv.URL), nil)
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "q")
	assert.ErrorIs(t, err, models.ErrProviderFailure)
	assert.EqualValues(t, 1, calls.Load())
}

func TestOpenAIEmbedder_GivesUpAfterMaxRetries(t *testing.T) {
	srv, calls := fakeOpenAI(t, func(embeddingRequest, int) (int, any) {
		return http.StatusTooManyRequests, errorBody("slow down")
	})
	e, err := NewOpenAIEmbedder(testConfig(srv.URL), nil)
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "q")
	assert.ErrorIs(t, err, models.ErrProviderFailure)
	assert.EqualValues(t, 3, calls.Load())
}

func TestOpenAIEmbedder_InvalidResponses(t *testing.T) {
	tests := []struct {
		name string
		body any
		dims int
	}{
		{"no data", okBody(), 0},
		{"empty vector", okBody([]float32{}), 0},
		{"wrong dimension", okBody([]float32{1, 2}), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := fakeOpenAI(t, func(embeddingRequest, int) (int, any) {
				return http.StatusOK, tt.body
			})
			cfg := testConfig(srv.URL)
			cfg.Dimensions = tt.dims
			e, err := NewOpenAIEmbedder(cfg, nil)
			require.NoError(t, err)
			_, err = e.Embed(context.Background(), "q")
			assert.ErrorIs(t, err, models.ErrInvalidEmbedding)
			assert.ErrorIs(t, err, models.ErrProviderFailure)
		})
	}
}

func TestOpenAIEmbedder_SendsDimensions(t *testing.T) {
	srv, _ := fakeOpenAI(t, func(req embeddingRequest, _ int) (int, any) {
		assert.Equal(t, 2, req.Dimensions)
		return http.StatusOK, okBody([]float32{1, 0})
	})
	cfg := testConfig(srv.URL)
	cfg.Dimensions = 2
	e, err := NewOpenAIEmbedder(cfg, nil)
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 2, e.Dimensions())
}

func TestOpenAIEmbedder_RespectsDeadline(t *testing.T) {
	srv, _ := fakeOpenAI(t, func(embeddingRequest, int) (int, any) {
		time.Sleep(200 * time.Millisecond)
		return http.StatusOK, okBody([]float32{1})
	})
	e, err := NewOpenAIEmbedder(testConfig(srv.URL), nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = e.Embed(ctx, "q")
	assert.ErrorIs(t, err, models.ErrProviderFailure)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestNewOpenAIEmbedder_RequiresKeyWithoutBaseURL(t *testing.T) {
	t.Setenv("SHIORI_TEST_OPENAI_KEY", "")
	cfg := testConfig("")
	cfg.BaseURL = ""
	_, err := NewOpenAIEmbedder(cfg, nil)
	assert.Error(t, err)

	t.Setenv("SHIORI_TEST_OPENAI_KEY", "sk-test")
	_, err = NewOpenAIEmbedder(cfg, nil)
	assert.NoError(t, err)
}

func TestNewFromConfig(t *testing.T) {
	e, err := NewFromConfig(&config.EmbeddingConfig{Provider: "mock", Dimensions: 8}, nil, nil)
	require.NoError(t, err)
	_, isMock := e.(*MockEmbedder)
	assert.True(t, isMock)

	e, err = NewFromConfig(&config.EmbeddingConfig{Provider: "mock", Dimensions: 8, CacheSize: 4}, nil, nil)
	require.NoError(t, err)
	_, isCached := e.(*CachedEmbedder)
	assert.True(t, isCached)
	assert.Equal(t, 8, e.Dimensions())

	_, err = NewFromConfig(&config.EmbeddingConfig{Provider: "onnx"}, nil, nil)
	assert.Error(t, err)
}
