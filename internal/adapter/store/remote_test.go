package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"finrag/internal/domain"
)

// fakePinecone stands in for both the control plane and the data plane.
type fakePinecone struct {
	mu          sync.Mutex
	records     map[string]pineconeVector
	upsertCalls int
	failBatch   int // 1-based index of an upsert call to reject, 0 = none
	created     bool
	existing    bool // index already exists on the control plane
}

func newFakePinecone(existing bool) *fakePinecone {
	return &fakePinecone{records: make(map[string]pineconeVector), existing: existing}
}

func (f *fakePinecone) server(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/indexes/test-index":
			if !f.existing && !f.created {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"name":   "test-index",
				"host":   srv.URL,
				"status": map[string]any{"ready": true, "state": "Ready"},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/indexes":
			f.created = true
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPost && r.URL.Path == "/vectors/upsert":
			f.upsertCalls++
			if f.upsertCalls == f.failBatch {
				http.Error(w, "quota exceeded", http.StatusTooManyRequests)
				return
			}
			var req upsertRequest
			json.NewDecoder(r.Body).Decode(&req)
			for _, v := range req.Vectors {
				f.records[v.ID] = v
			}
			json.NewEncoder(w).Encode(map[string]any{"upsertedCount": len(req.Vectors)})
		case r.Method == http.MethodPost && r.URL.Path == "/query":
			var req queryRequest
			json.NewDecoder(r.Body).Decode(&req)
			matches := make([]map[string]any, 0)
			for id, v := range f.records {
				matches = append(matches, map[string]any{
					"id": id, "score": 0.5, "metadata": v.Metadata,
				})
				if len(matches) >= req.TopK {
					break
				}
			}
			json.NewEncoder(w).Encode(map[string]any{"matches": matches})
		case r.Method == http.MethodGet && r.URL.Path == "/vectors/fetch":
			found := map[string]pineconeVector{}
			for _, id := range r.URL.Query()["ids"] {
				if v, ok := f.records[id]; ok {
					found[id] = v
				}
			}
			json.NewEncoder(w).Encode(map[string]any{"vectors": found})
		case r.Method == http.MethodPost && r.URL.Path == "/vectors/delete":
			f.records = make(map[string]pineconeVector)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/describe_index_stats":
			json.NewEncoder(w).Encode(map[string]any{"totalVectorCount": len(f.records)})
		default:
			http.NotFound(w, r)
		}
	}))
	return srv
}

func remoteOpts(srvURL string) RemoteOptions {
	return RemoteOptions{
		APIKey:          "test",
		IndexName:       "test-index",
		Dimension:       2,
		BatchSize:       50,
		ControlPlaneURL: srvURL,
	}
}

func TestPineconeCreatesMissingIndex(t *testing.T) {
	fake := newFakePinecone(false)
	srv := fake.server(t)
	defer srv.Close()

	idx, err := NewPineconeIndex(context.Background(), remoteOpts(srv.URL), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !fake.created {
		t.Error("expected the missing index to be created")
	}
	if idx.Name() != "pinecone" {
		t.Errorf("unexpected backend name %q", idx.Name())
	}
}

func TestPineconeUpsertBatches(t *testing.T) {
	fake := newFakePinecone(true)
	srv := fake.server(t)
	defer srv.Close()

	idx, err := NewPineconeIndex(context.Background(), remoteOpts(srv.URL), nil)
	if err != nil {
		t.Fatal(err)
	}

	records := make([]domain.VectorRecord, 120)
	for i := range records {
		records[i] = record(domain.ChunkID("doc", i), "t", "s", []float32{1, 0})
	}
	if err := idx.Upsert(context.Background(), records); err != nil {
		t.Fatal(err)
	}

	if fake.upsertCalls != 3 {
		t.Errorf("expected 3 batches of <=50 for 120 records, got %d calls", fake.upsertCalls)
	}
	if len(fake.records) != 120 {
		t.Errorf("expected 120 stored records, got %d", len(fake.records))
	}
}

func TestPineconeFailedBatchIsSkippedNotFatal(t *testing.T) {
	fake := newFakePinecone(true)
	fake.failBatch = 2
	srv := fake.server(t)
	defer srv.Close()

	idx, err := NewPineconeIndex(context.Background(), remoteOpts(srv.URL), nil)
	if err != nil {
		t.Fatal(err)
	}

	records := make([]domain.VectorRecord, 120)
	for i := range records {
		records[i] = record(domain.ChunkID("doc", i), "t", "s", []float32{1, 0})
	}
	if err := idx.Upsert(context.Background(), records); err != nil {
		t.Fatalf("a failed batch must not abort the upsert, got %v", err)
	}

	if fake.upsertCalls != 3 {
		t.Errorf("expected sibling batches to still be sent, got %d calls", fake.upsertCalls)
	}
	if len(fake.records) != 70 {
		t.Errorf("expected 70 stored records with one batch skipped, got %d", len(fake.records))
	}
}

func TestPineconeFetchAndClear(t *testing.T) {
	fake := newFakePinecone(true)
	srv := fake.server(t)
	defer srv.Close()

	ctx := context.Background()
	idx, err := NewPineconeIndex(ctx, remoteOpts(srv.URL), nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := idx.Upsert(ctx, []domain.VectorRecord{
		record("doc_0", "first chunk", "doc.txt", []float32{1, 0}),
	}); err != nil {
		t.Fatal(err)
	}

	found, err := idx.Fetch(ctx, []string{"doc_0", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 {
		t.Fatalf("expected the present subset, got %d entries", len(found))
	}

	count, err := idx.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	if err := idx.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	count, _ = idx.Count(ctx)
	if count != 0 {
		t.Errorf("expected empty index after clear, got %d", count)
	}
}
