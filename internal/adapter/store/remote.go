package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"finrag/internal/domain"
)

const (
	controlPlaneURL = "https://api.pinecone.io"
	apiVersion      = "2024-07"
)

// PineconeIndex is a REST client for a Pinecone serverless index. The index
// is created with a cosine metric and the configured dimension when absent,
// and upserts are batched to respect provider payload limits.
//
// The provider is eventually consistent: a record upserted here may not be
// visible to an immediately following Search or Fetch.
type PineconeIndex struct {
	apiKey    string
	indexName string
	host      string
	dimension int
	batchSize int
	client    *http.Client
	logger    *zap.Logger
}

// RemoteOptions configures the Pinecone client.
type RemoteOptions struct {
	APIKey    string
	IndexName string
	Cloud     string
	Region    string
	Dimension int
	BatchSize int
	Timeout   time.Duration
	// ControlPlaneURL overrides the Pinecone API endpoint, for tests.
	ControlPlaneURL string
}

type indexDescription struct {
	Name   string `json:"name"`
	Host   string `json:"host"`
	Status struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

type upsertRequest struct {
	Vectors []pineconeVector `json:"vectors"`
}

type pineconeVector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string            `json:"id"`
		Score    float64           `json:"score"`
		Metadata map[string]string `json:"metadata"`
	} `json:"matches"`
}

type fetchResponse struct {
	Vectors map[string]pineconeVector `json:"vectors"`
}

type statsResponse struct {
	TotalVectorCount int `json:"totalVectorCount"`
}

// NewPineconeIndex connects to the named index, creating it (dimension,
// cosine metric, serverless spec) when it does not exist, and waits for
// readiness before returning. An error here means the remote backend is
// unusable and the caller should fall back.
func NewPineconeIndex(ctx context.Context, opts RemoteOptions, logger *zap.Logger) (*PineconeIndex, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("pinecone API key not configured")
	}
	if opts.IndexName == "" {
		return nil, fmt.Errorf("pinecone index name not configured")
	}
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", opts.Dimension)
	}
	if opts.Cloud == "" {
		opts.Cloud = "aws"
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.ControlPlaneURL == "" {
		opts.ControlPlaneURL = controlPlaneURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	idx := &PineconeIndex{
		apiKey:    opts.APIKey,
		indexName: opts.IndexName,
		dimension: opts.Dimension,
		batchSize: opts.BatchSize,
		client:    &http.Client{Timeout: opts.Timeout},
		logger:    logger,
	}

	desc, err := idx.describeIndex(ctx, opts.ControlPlaneURL)
	if err != nil {
		logger.Info("creating pinecone index", zap.String("index", opts.IndexName))
		if err := idx.createIndex(ctx, opts); err != nil {
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
		desc, err = idx.waitReady(ctx, opts.ControlPlaneURL)
		if err != nil {
			return nil, err
		}
	} else if !desc.Status.Ready {
		desc, err = idx.waitReady(ctx, opts.ControlPlaneURL)
		if err != nil {
			return nil, err
		}
	}

	idx.host = desc.Host
	logger.Info("connected to pinecone index",
		zap.String("index", opts.IndexName),
		zap.String("host", desc.Host))
	return idx, nil
}

func (p *PineconeIndex) describeIndex(ctx context.Context, base string) (*indexDescription, error) {
	var desc indexDescription
	if err := p.doJSON(ctx, http.MethodGet, base+"/indexes/"+p.indexName, nil, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

func (p *PineconeIndex) createIndex(ctx context.Context, opts RemoteOptions) error {
	body := map[string]any{
		"name":      p.indexName,
		"dimension": p.dimension,
		"metric":    "cosine",
		"spec": map[string]any{
			"serverless": map[string]any{
				"cloud":  opts.Cloud,
				"region": opts.Region,
			},
		},
	}
	return p.doJSON(ctx, http.MethodPost, opts.ControlPlaneURL+"/indexes", body, nil)
}

// waitReady polls the index description until the provider reports it ready.
func (p *PineconeIndex) waitReady(ctx context.Context, base string) (*indexDescription, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for i := 0; i < 30; i++ {
		desc, err := p.describeIndex(ctx, base)
		if err == nil && desc.Status.Ready {
			return desc, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
	return nil, fmt.Errorf("index %s not ready in time", p.indexName)
}

// Upsert writes records in batches. A failed batch is logged and skipped;
// it does not abort sibling batches, so there is no cross-batch atomicity.
func (p *PineconeIndex) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	for start := 0; start < len(records); start += p.batchSize {
		end := start + p.batchSize
		if end > len(records) {
			end = len(records)
		}

		vectors := make([]pineconeVector, 0, end-start)
		for _, rec := range records[start:end] {
			vectors = append(vectors, pineconeVector{
				ID:       rec.ID,
				Values:   rec.Vector,
				Metadata: rec.Metadata,
			})
		}

		if err := p.doJSON(ctx, http.MethodPost, p.dataURL("/vectors/upsert"), upsertRequest{Vectors: vectors}, nil); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("upsert batch failed, skipping",
				zap.Int("batch_start", start),
				zap.Int("batch_len", end-start),
				zap.Error(err))
		}
	}
	return nil
}

// Search delegates ranking to the remote service and returns its reported
// similarity scores verbatim.
func (p *PineconeIndex) Search(ctx context.Context, vector []float32, topK int) ([]domain.QueryMatch, error) {
	req := queryRequest{Vector: vector, TopK: topK, IncludeMetadata: true}
	var resp queryResponse
	if err := p.doJSON(ctx, http.MethodPost, p.dataURL("/query"), req, &resp); err != nil {
		return nil, fmt.Errorf("pinecone query failed: %w", err)
	}

	matches := make([]domain.QueryMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, domain.QueryMatch{
			Content:    m.Metadata[domain.MetaText],
			SourcePath: m.Metadata[domain.MetaSource],
			Score:      m.Score,
		})
	}
	return matches, nil
}

// Fetch returns the present subset of the requested ids.
func (p *PineconeIndex) Fetch(ctx context.Context, ids []string) (map[string]domain.VectorRecord, error) {
	q := url.Values{}
	for _, id := range ids {
		q.Add("ids", id)
	}
	var resp fetchResponse
	if err := p.doJSON(ctx, http.MethodGet, p.dataURL("/vectors/fetch?"+q.Encode()), nil, &resp); err != nil {
		return nil, fmt.Errorf("pinecone fetch failed: %w", err)
	}

	found := make(map[string]domain.VectorRecord, len(resp.Vectors))
	for id, v := range resp.Vectors {
		found[id] = domain.VectorRecord{ID: id, Vector: v.Values, Metadata: v.Metadata}
	}
	return found, nil
}

// Clear issues a provider-level delete-all.
func (p *PineconeIndex) Clear(ctx context.Context) error {
	body := map[string]any{"deleteAll": true}
	if err := p.doJSON(ctx, http.MethodPost, p.dataURL("/vectors/delete"), body, nil); err != nil {
		return fmt.Errorf("pinecone delete-all failed: %w", err)
	}
	return nil
}

// Count reports the provider's total vector count. The number lags recent
// upserts while the remote index build catches up.
func (p *PineconeIndex) Count(ctx context.Context) (int, error) {
	var resp statsResponse
	if err := p.doJSON(ctx, http.MethodPost, p.dataURL("/describe_index_stats"), map[string]any{}, &resp); err != nil {
		return 0, fmt.Errorf("pinecone stats failed: %w", err)
	}
	return resp.TotalVectorCount, nil
}

// Name identifies the backend.
func (p *PineconeIndex) Name() string {
	return "pinecone"
}

func (p *PineconeIndex) dataURL(path string) string {
	host := p.host
	if host == "" {
		return path
	}
	if !strings.HasPrefix(host, "http") {
		host = "https://" + host
	}
	return host + path
}

func (p *PineconeIndex) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Api-Key", p.apiKey)
	req.Header.Set("X-Pinecone-Api-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("pinecone %s %s failed: %s: %s", method, url, resp.Status, string(preview))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
