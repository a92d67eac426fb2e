package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// GeminiEmbedder generates embeddings through the Gemini embedContent API.
// A rate limiter enforces a minimum delay between successive calls to
// pre-empt rate limiting rather than only reacting to it.
type GeminiEmbedder struct {
	apiKey    string
	model     string
	baseURL   string
	dimension int
	client    *http.Client
	limiter   *rate.Limiter
	retry     RetryPolicy
	logger    *zap.Logger
}

// Config configures the Gemini embeddings client.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Dimension   int
	Timeout     time.Duration
	MinInterval time.Duration
	Retry       RetryPolicy
	Logger      *zap.Logger
}

type embedRequest struct {
	Model   string       `json:"model"`
	Content embedContent `json:"content"`
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedPart struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding *embedValues `json:"embedding"`
	Error     *apiError    `json:"error,omitempty"`
}

type embedValues struct {
	Values []float32 `json:"values"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// NewGeminiEmbedder creates a Gemini embeddings client.
func NewGeminiEmbedder(cfg Config) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API key not configured")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 768
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry.BaseDelay = time.Second
	}
	if cfg.Retry.RetryDelay <= 0 {
		cfg.Retry.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.MinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}

	return &GeminiEmbedder{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		baseURL:   cfg.BaseURL,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   limiter,
		retry:     cfg.Retry,
		logger:    cfg.Logger,
	}, nil
}

// Embed generates the embedding for a single text, retrying per the
// configured policy. The returned error means the attempt budget was spent.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := e.retry.Do(ctx, e.logger, func(ctx context.Context) error {
		v, err := e.embedOnce(ctx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

func (e *GeminiEmbedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqBody := embedRequest{
		Model:   "models/" + e.model,
		Content: embedContent{Parts: []embedPart{{Text: text}}},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:embedContent?key=%s", e.baseURL, e.model, e.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{Message: previewBody(body)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, previewBody(body))
	}

	var embResp embedResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response (body: %s): %w", previewBody(body), err)
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", embResp.Error.Message)
	}
	if embResp.Embedding == nil || len(embResp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("API returned empty embedding")
	}
	if len(embResp.Embedding.Values) != e.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d",
			e.dimension, len(embResp.Embedding.Values))
	}

	return embResp.Embedding.Values, nil
}

// Dimension returns the embedding vector dimension.
func (e *GeminiEmbedder) Dimension() int {
	return e.dimension
}

// ModelName returns the name of the embedding model.
func (e *GeminiEmbedder) ModelName() string {
	return e.model
}

func previewBody(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// MockEmbedder produces deterministic vectors without network calls and
// counts invocations, which ingestion idempotence tests rely on.
type MockEmbedder struct {
	dimension int
	calls     atomic.Int64
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	vec := make([]float32, e.dimension)
	for i, r := range text {
		if i >= e.dimension {
			break
		}
		vec[i] = float32(r) / 1000.0
	}
	return vec, nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}

// Calls returns how many Embed invocations were made.
func (e *MockEmbedder) Calls() int {
	return int(e.calls.Load())
}
