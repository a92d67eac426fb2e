package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"finrag/internal/adapter/cache"
	"finrag/internal/adapter/store"
	"finrag/internal/domain"
)

// AdminUseCase covers the operational surface: backend status and the bulk
// clear that removes every stored vector.
type AdminUseCase struct {
	store                *store.Selector
	answers              *cache.AnswerCache
	embeddingConfigured  bool
	generationConfigured bool
	logger               *zap.Logger
}

func NewAdminUseCase(
	sel *store.Selector,
	answers *cache.AnswerCache,
	embeddingConfigured, generationConfigured bool,
	logger *zap.Logger,
) *AdminUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminUseCase{
		store:                sel,
		answers:              answers,
		embeddingConfigured:  embeddingConfigured,
		generationConfigured: generationConfigured,
		logger:               logger,
	}
}

// Status reports the active backend and credential configuration. It never
// forces backend selection: before first use the backend field carries a
// "pending" hint and the record count is only read from an already bound
// backend.
func (u *AdminUseCase) Status(ctx context.Context) (*domain.StoreStatus, error) {
	status := &domain.StoreStatus{
		Backend:              u.store.Name(),
		RemoteConfigured:     u.store.RemoteConfigured(),
		EmbeddingConfigured:  u.embeddingConfigured,
		GenerationConfigured: u.generationConfigured,
	}

	if active, ok := u.store.Selected(); ok {
		count, err := active.Count(ctx)
		if err != nil {
			u.logger.Warn("failed to count records for status", zap.Error(err))
		} else {
			status.RecordCount = count
		}
	}
	return status, nil
}

// Clear removes all records from the active backend.
func (u *AdminUseCase) Clear(ctx context.Context) error {
	if err := u.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	if u.answers != nil {
		u.answers.Invalidate()
	}
	u.logger.Info("cleared all stored vectors", zap.String("backend", u.store.Name()))
	return nil
}
