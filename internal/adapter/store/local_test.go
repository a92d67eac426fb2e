package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"finrag/internal/domain"
)

func record(id, text, source string, vec []float32) domain.VectorRecord {
	return domain.VectorRecord{
		ID:     id,
		Vector: vec,
		Metadata: map[string]string{
			domain.MetaText:   text,
			domain.MetaSource: source,
		},
	}
}

func TestLocalIndexRankingOrder(t *testing.T) {
	ctx := context.Background()
	idx := NewLocalIndex(2, nil)

	// Query along the x axis; cosine similarities are known up front.
	query := []float32{1, 0}
	err := idx.Upsert(ctx, []domain.VectorRecord{
		record("b", "diagonal", "b.txt", []float32{1, 1}),  // cos = 0.7071
		record("c", "vertical", "c.txt", []float32{0, 1}),  // cos = 0
		record("a", "parallel", "a.txt", []float32{2, 0}),  // cos = 1
	})
	if err != nil {
		t.Fatal(err)
	}

	matches, err := idx.Search(ctx, query, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}

	wantOrder := []string{"parallel", "diagonal", "vertical"}
	wantScores := []float64{1, 1 / math.Sqrt2, 0}
	for i, m := range matches {
		if m.Content != wantOrder[i] {
			t.Errorf("position %d: expected %q, got %q", i, wantOrder[i], m.Content)
		}
		if math.Abs(m.Score-wantScores[i]) > 1e-6 {
			t.Errorf("position %d: expected score %.4f, got %.4f", i, wantScores[i], m.Score)
		}
	}
}

func TestLocalIndexTopKTruncation(t *testing.T) {
	// Vector A at cosine 0.9 and B at 0.4 against the query: topK=1 must
	// return only A.
	ctx := context.Background()
	idx := NewLocalIndex(2, nil)

	query := []float32{1, 0}
	a := []float32{0.9, float32(math.Sqrt(1 - 0.81))} // cos = 0.9
	b := []float32{0.4, float32(math.Sqrt(1 - 0.16))} // cos = 0.4

	if err := idx.Upsert(ctx, []domain.VectorRecord{
		record("b", "weak match", "b.txt", b),
		record("a", "strong match", "a.txt", a),
	}); err != nil {
		t.Fatal(err)
	}

	matches, err := idx.Search(ctx, query, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 match, got %d", len(matches))
	}
	if matches[0].Content != "strong match" {
		t.Errorf("expected the 0.9-similarity record, got %q", matches[0].Content)
	}
	if math.Abs(matches[0].Score-0.9) > 1e-6 {
		t.Errorf("expected score 0.9, got %.4f", matches[0].Score)
	}
}

func TestLocalIndexLastWriteWins(t *testing.T) {
	ctx := context.Background()
	idx := NewLocalIndex(2, nil)

	if err := idx.Upsert(ctx, []domain.VectorRecord{
		record("x", "old", "x.txt", []float32{1, 0}),
	}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Upsert(ctx, []domain.VectorRecord{
		record("x", "new", "x.txt", []float32{0, 1}),
	}); err != nil {
		t.Fatal(err)
	}

	count, _ := idx.Count(ctx)
	if count != 1 {
		t.Fatalf("duplicate id should not grow the index, got count %d", count)
	}
	found, err := idx.Fetch(ctx, []string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	if found["x"].Metadata[domain.MetaText] != "new" {
		t.Errorf("expected last write to win, got %q", found["x"].Metadata[domain.MetaText])
	}
}

func TestLocalIndexDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewLocalIndex(3, nil)

	err := idx.Upsert(ctx, []domain.VectorRecord{
		record("x", "bad", "x.txt", []float32{1, 0}),
	})
	if err == nil {
		t.Fatal("expected dimension mismatch error on upsert")
	}

	if _, err := idx.Search(ctx, []float32{1, 0}, 1); err == nil {
		t.Fatal("expected dimension mismatch error on search")
	}
}

func TestLocalIndexFetchPresentSubset(t *testing.T) {
	ctx := context.Background()
	idx := NewLocalIndex(2, nil)

	if err := idx.Upsert(ctx, []domain.VectorRecord{
		record("a", "a", "a.txt", []float32{1, 0}),
	}); err != nil {
		t.Fatal(err)
	}

	found, err := idx.Fetch(ctx, []string{"a", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 {
		t.Fatalf("expected only the present id, got %d", len(found))
	}
	if _, ok := found["a"]; !ok {
		t.Error("expected id a to be present")
	}
}

func TestLocalIndexClear(t *testing.T) {
	ctx := context.Background()
	idx := NewLocalIndex(2, nil)

	if err := idx.Upsert(ctx, []domain.VectorRecord{
		record("a", "a", "a.txt", []float32{1, 0}),
		record("b", "b", "b.txt", []float32{0, 1}),
	}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Clear(ctx); err != nil {
		t.Fatal(err)
	}

	count, _ := idx.Count(ctx)
	if count != 0 {
		t.Errorf("expected empty index after clear, got %d", count)
	}
	matches, err := idx.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches after clear, got %d", len(matches))
	}
}

func TestLocalIndexPersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.db")

	idx, err := OpenLocalIndex(path, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Upsert(ctx, []domain.VectorRecord{
		record("a", "persisted", "a.txt", []float32{1, 0}),
	}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenLocalIndex(path, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	count, _ := reopened.Count(ctx)
	if count != 1 {
		t.Fatalf("expected 1 record after reopen, got %d", count)
	}
	found, err := reopened.Fetch(ctx, []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if found["a"].Metadata[domain.MetaText] != "persisted" {
		t.Error("expected record metadata to survive reopen")
	}
}

func TestLocalIndexConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	idx := NewLocalIndex(2, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			idx.Upsert(ctx, []domain.VectorRecord{
				record("w", "w", "w.txt", []float32{1, 0}),
			})
		}
	}()
	for i := 0; i < 100; i++ {
		if _, err := idx.Search(ctx, []float32{1, 0}, 1); err != nil {
			t.Fatal(err)
		}
	}
	<-done
}
