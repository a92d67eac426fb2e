package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"finrag/internal/domain"
)

var bucketVectors = []byte("vectors")

// LocalIndex is the in-process fallback backend: an ordered collection of
// vector records searched by brute-force cosine similarity. The linear scan
// is deliberate; this backend exists for resilience, not throughput.
//
// When opened with a file path the records are mirrored into a bbolt bucket
// and reloaded on open; without one the index lives purely in memory and
// does not survive a restart.
type LocalIndex struct {
	mu        sync.RWMutex
	dimension int
	ids       map[string]int // id -> position in records
	records   []domain.VectorRecord
	db        *bbolt.DB
	logger    *zap.Logger
}

type storedRecord struct {
	Vector   []float32         `json:"v"`
	Metadata map[string]string `json:"m,omitempty"`
}

// NewLocalIndex creates a memory-only local index.
func NewLocalIndex(dimension int, logger *zap.Logger) *LocalIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalIndex{
		dimension: dimension,
		ids:       make(map[string]int),
		logger:    logger,
	}
}

// OpenLocalIndex creates a local index persisted to a bbolt file, loading
// any records a previous process left behind.
func OpenLocalIndex(path string, dimension int, logger *zap.Logger) (*LocalIndex, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open local index file: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVectors)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create vectors bucket: %w", err)
	}

	idx := NewLocalIndex(dimension, logger)
	idx.db = db
	if err := idx.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	return idx, nil
}

func (s *LocalIndex) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var stored storedRecord
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // skip corrupted entries
			}
			s.put(domain.VectorRecord{
				ID:       string(k),
				Vector:   stored.Vector,
				Metadata: stored.Metadata,
			})
			return nil
		})
	})
}

// put inserts or replaces a record. Caller holds the write lock (or is the
// only owner during load).
func (s *LocalIndex) put(rec domain.VectorRecord) {
	if pos, ok := s.ids[rec.ID]; ok {
		s.records[pos] = rec
		return
	}
	s.ids[rec.ID] = len(s.records)
	s.records = append(s.records, rec)
}

// Upsert adds or replaces records. Duplicate ids are last-write-wins.
func (s *LocalIndex) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if len(rec.Vector) != s.dimension {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(rec.Vector))
		}
	}

	for _, rec := range records {
		s.put(rec)
	}

	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for _, rec := range records {
			data, err := json.Marshal(storedRecord{Vector: rec.Vector, Metadata: rec.Metadata})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(rec.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Search scores every stored record against the query vector with cosine
// similarity and returns the topK matches in descending score order.
func (s *LocalIndex) Search(_ context.Context, vector []float32, topK int) ([]domain.QueryMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(vector))
	}
	if len(s.records) == 0 {
		return nil, nil
	}

	type scored struct {
		pos   int
		score float64
	}
	scores := make([]scored, len(s.records))
	for i, rec := range s.records {
		scores[i] = scored{pos: i, score: cosineSimilarity(vector, rec.Vector)}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	if topK > len(scores) {
		topK = len(scores)
	}
	matches := make([]domain.QueryMatch, 0, topK)
	for _, sc := range scores[:topK] {
		rec := s.records[sc.pos]
		matches = append(matches, domain.QueryMatch{
			Content:    rec.Metadata[domain.MetaText],
			SourcePath: rec.Metadata[domain.MetaSource],
			Score:      sc.score,
		})
	}
	return matches, nil
}

// Fetch returns the present subset of the requested ids.
func (s *LocalIndex) Fetch(_ context.Context, ids []string) (map[string]domain.VectorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]domain.VectorRecord)
	for _, id := range ids {
		if pos, ok := s.ids[id]; ok {
			found[id] = s.records[pos]
		}
	}
	return found, nil
}

// Clear removes every record.
func (s *LocalIndex) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids = make(map[string]int)
	s.records = nil

	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketVectors); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketVectors)
		return err
	})
}

// Count returns the number of stored records.
func (s *LocalIndex) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Name identifies the backend.
func (s *LocalIndex) Name() string {
	return "local"
}

// Close releases the underlying bbolt file, if any.
func (s *LocalIndex) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// cosineSimilarity is the normalized dot product of two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
