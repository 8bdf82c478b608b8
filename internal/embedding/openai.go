package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/pkg/utils"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.SmallEmbedding3

var modelDimensions = map[openai.EmbeddingModel]int{
	openai.SmallEmbedding3: 1536,
	openai.LargeEmbedding3: 3072,
	openai.AdaEmbeddingV2:  1536,
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint, or any server speaking the same API.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewOpenAIEmbedder creates an embedder from cfg. The API key is read from the
// environment variable cfg.APIKeyEnv and is only optional when a base URL is set.
func NewOpenAIEmbedder(cfg *config.EmbeddingConfig, logger *zap.Logger) (*OpenAIEmbedder, error) {
	apiKey := cfg.APIKey()
	if apiKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("OpenAI API key is required (set %s)", cfg.APIKeyEnv)
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := openai.EmbeddingModel(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	e := &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		dimensions: cfg.Dimensions,
		maxRetries: max(cfg.MaxRetries, 0),
		retryDelay: cfg.RetryDelay,
		logger:     utils.OrNop(logger),
	}
	if cfg.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.Burst, 1))
	}
	return e, nil
}

// Embed returns the embedding of a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in one request, retrying rate limits, server errors and
// transport failures with jittered exponential backoff until ctx is done.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	req := openai.EmbeddingRequestStrings{Input: texts, Model: e.model}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, utils.CalculateBackoff(e.retryDelay, attempt)); err != nil {
				break
			}
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}
		attempts++
		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil || !retryable(err) {
				break
			}
			e.logger.Debug("embedding request failed, retrying",
				zap.Int("attempt", attempts),
				zap.Error(err),
			)
			continue
		}
		return e.collect(resp, len(texts))
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return nil, fmt.Errorf("%w: %d attempt(s): %w", models.ErrProviderFailure, attempts, lastErr)
}

// collect orders the response by input index and validates every vector.
func (e *OpenAIEmbedder) collect(resp openai.EmbeddingResponse, n int) ([][]float32, error) {
	if len(resp.Data) != n {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", models.ErrInvalidEmbedding, len(resp.Data), n)
	}
	out := make([][]float32, n)
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= n || out[d.Index] != nil {
			return nil, fmt.Errorf("%w: unexpected index %d", models.ErrInvalidEmbedding, d.Index)
		}
		if err := Validate(d.Embedding, e.dimensions); err != nil {
			return nil, err
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Dimensions returns the configured dimension, or the model's native one when known.
func (e *OpenAIEmbedder) Dimensions() int {
	if e.dimensions > 0 {
		return e.dimensions
	}
	return modelDimensions[e.model]
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (e *OpenAIEmbedder) Close() error {
	return nil
}

func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
