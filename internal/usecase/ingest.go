package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"finrag/internal/adapter/cache"
	"finrag/internal/domain"
	"finrag/internal/port"
)

// IngestUseCase runs the ingestion pipeline for one document: fingerprint,
// dedup short-circuit, chunk, embed, upsert. Embedding failures are
// per-chunk events: the chunk is logged and skipped unless RequireAll is
// set, and only a document where every chunk fails is fatal.
type IngestUseCase struct {
	chunker    port.Chunker
	embedder   port.Embedder
	store      port.VectorStore
	answers    *cache.AnswerCache
	requireAll bool
	logger     *zap.Logger
}

// NewIngestUseCase creates an ingest use case. The answer cache may be nil.
func NewIngestUseCase(
	chunker port.Chunker,
	embedder port.Embedder,
	store port.VectorStore,
	answers *cache.AnswerCache,
	requireAll bool,
	logger *zap.Logger,
) *IngestUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestUseCase{
		chunker:    chunker,
		embedder:   embedder,
		store:      store,
		answers:    answers,
		requireAll: requireAll,
		logger:     logger,
	}
}

// Fingerprint derives the deterministic document id from its full extracted
// text. Identical bytes always map to the same id, which is what makes
// re-ingestion a recognizable no-op.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Ingest processes one document's extracted text. Re-running on identical
// content short-circuits before any embedding call is issued.
func (u *IngestUseCase) Ingest(ctx context.Context, sourcePath, text string) (*domain.IngestResult, error) {
	if text == "" {
		return nil, domain.ErrEmptyDocument
	}

	docID := Fingerprint(text)
	log := u.logger.With(zap.String("doc_id", docID), zap.String("source", sourcePath))

	if u.alreadyIngested(ctx, docID) {
		log.Info("document already ingested, skipping")
		return &domain.IngestResult{DocID: docID, Deduplicated: true}, nil
	}

	chunks := u.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, domain.ErrEmptyDocument
	}

	records := make([]domain.VectorRecord, 0, len(chunks))
	failed := 0
	for i, chunkText := range chunks {
		if err := ctx.Err(); err != nil {
			// Cancellation stops issuing embedding calls; batches already
			// upserted by a previous run stay put, and a re-run resumes
			// safely through the dedup check.
			return nil, err
		}

		vector, err := u.embedder.Embed(ctx, chunkText)
		if err != nil {
			failed++
			log.Warn("failed to embed chunk, skipping", zap.Int("chunk", i), zap.Error(err))
			continue
		}
		records = append(records, domain.VectorRecord{
			ID:     domain.ChunkID(docID, i),
			Vector: vector,
			Metadata: map[string]string{
				domain.MetaText:       chunkText,
				domain.MetaSource:     sourcePath,
				domain.MetaDocID:      docID,
				domain.MetaChunkIndex: strconv.Itoa(i),
			},
		})
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w for document %s", domain.ErrNoEmbeddings, docID)
	}
	if u.requireAll && failed > 0 {
		return nil, fmt.Errorf("%d of %d chunks failed to embed", failed, len(chunks))
	}

	if err := u.store.Upsert(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to upsert vectors: %w", err)
	}

	if u.answers != nil {
		u.answers.Invalidate()
	}

	log.Info("document ingested",
		zap.Int("chunks_stored", len(records)),
		zap.Int("chunks_failed", failed))
	return &domain.IngestResult{
		DocID:        docID,
		ChunksStored: len(records),
		ChunksFailed: failed,
	}, nil
}

// alreadyIngested checks for the document's first chunk in the store.
// Chunks are written as one batch, so presence of chunk 0 implies the whole
// document was stored. The check runs before any embedding call to avoid
// wasted network cost. A fetch error (or a miss right after an upsert on an
// eventually consistent remote index) is ambiguous, and ambiguity resolves
// to re-ingesting: upserts by deterministic id are idempotent.
func (u *IngestUseCase) alreadyIngested(ctx context.Context, docID string) bool {
	found, err := u.store.Fetch(ctx, []string{domain.ChunkID(docID, 0)})
	if err != nil {
		u.logger.Warn("dedup check failed, proceeding with ingestion", zap.Error(err))
		return false
	}
	return len(found) > 0
}
