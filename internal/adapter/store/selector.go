package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"finrag/internal/domain"
	"finrag/internal/port"
)

// Options configures backend selection.
type Options struct {
	Remote RemoteOptions
	// LocalPath, when set, persists the local fallback to a bbolt file.
	LocalPath string
	Dimension int
}

// Selector is a VectorStore that binds to a concrete backend on first use.
// The remote index is preferred when its API key is configured and
// initialization succeeds; otherwise the store permanently falls back to the
// local index for the lifetime of this instance. There is no per-call
// re-negotiation, and initialization is deliberately lazy: the backing
// service may be provisioned after process start.
type Selector struct {
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	active port.VectorStore
}

// NewSelector creates an unbound store. No network traffic happens until
// the first operation.
func NewSelector(opts Options, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Remote.Dimension == 0 {
		opts.Remote.Dimension = opts.Dimension
	}
	return &Selector{opts: opts, logger: logger}
}

// backend performs the one-time selection.
func (s *Selector) backend(ctx context.Context) port.VectorStore {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return s.active
	}

	if s.opts.Remote.APIKey != "" {
		remote, err := NewPineconeIndex(ctx, s.opts.Remote, s.logger)
		if err == nil {
			s.active = remote
			return s.active
		}
		s.logger.Warn("remote index initialization failed, falling back to local store",
			zap.Error(err))
	}

	if s.opts.LocalPath != "" {
		local, err := OpenLocalIndex(s.opts.LocalPath, s.opts.Dimension, s.logger)
		if err == nil {
			s.active = local
			return s.active
		}
		s.logger.Warn("persistent local index unavailable, using memory only",
			zap.String("path", s.opts.LocalPath),
			zap.Error(err))
	}

	s.active = NewLocalIndex(s.opts.Dimension, s.logger)
	return s.active
}

// Selected returns the bound backend without forcing selection.
func (s *Selector) Selected() (port.VectorStore, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil, false
	}
	return s.active, true
}

// RemoteConfigured reports whether remote credentials are present.
func (s *Selector) RemoteConfigured() bool {
	return s.opts.Remote.APIKey != ""
}

func (s *Selector) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	return s.backend(ctx).Upsert(ctx, records)
}

func (s *Selector) Search(ctx context.Context, vector []float32, topK int) ([]domain.QueryMatch, error) {
	return s.backend(ctx).Search(ctx, vector, topK)
}

func (s *Selector) Fetch(ctx context.Context, ids []string) (map[string]domain.VectorRecord, error) {
	return s.backend(ctx).Fetch(ctx, ids)
}

func (s *Selector) Clear(ctx context.Context) error {
	return s.backend(ctx).Clear(ctx)
}

func (s *Selector) Count(ctx context.Context) (int, error) {
	return s.backend(ctx).Count(ctx)
}

// Name reports the bound backend, or what selection would attempt.
func (s *Selector) Name() string {
	if active, ok := s.Selected(); ok {
		return active.Name()
	}
	if s.RemoteConfigured() {
		return "pending: pinecone"
	}
	return "pending: local"
}
