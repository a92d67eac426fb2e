package domain

import "fmt"

// Document is a unit of ingestion: the full extracted text of one source,
// identified by a content fingerprint so that re-ingesting identical bytes
// is recognized as a no-op.
type Document struct {
	ID         string // hex sha256 of the full extracted text
	SourcePath string
	Text       string
}

// Chunk is a bounded substring of a document, the unit of embedding and
// retrieval.
type Chunk struct {
	ID         string // DocID + "_" + Index
	DocID      string
	SourcePath string
	Index      int
	Text       string
}

// ChunkID derives the deterministic id of the index-th chunk of a document.
func ChunkID(docID string, index int) string {
	return fmt.Sprintf("%s_%d", docID, index)
}

// VectorRecord is the stored triple of chunk id, embedding and metadata.
// The vector store exclusively owns all records.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// Metadata keys stored with every vector record.
const (
	MetaText       = "text"
	MetaSource     = "source"
	MetaDocID      = "doc_id"
	MetaChunkIndex = "chunk_index"
)

// QueryMatch is a transient search result, ordered by score descending.
// Matches are never persisted.
type QueryMatch struct {
	Content    string
	SourcePath string
	Score      float64
}

// IngestResult reports the outcome of ingesting one document.
type IngestResult struct {
	DocID        string `json:"doc_id"`
	ChunksStored int    `json:"chunks_stored"`
	ChunksFailed int    `json:"chunks_failed,omitempty"`
	Deduplicated bool   `json:"deduplicated,omitempty"`
}

// Answer is the result of a RAG query. GenerationErr is set when retrieval
// succeeded but the generation call failed; the query as a whole is still
// reported as successful in that case.
type Answer struct {
	Content         string    `json:"content"`
	SourcesUsed     []string  `json:"sources_used"`
	NumSources      int       `json:"num_sources"`
	RelevanceScores []float64 `json:"relevance_scores"`
	GenerationErr   string    `json:"generation_error,omitempty"`
}

// StoreStatus describes the vector store backend as seen by the status
// operation. Backend is "pinecone" or "local" once selection has happened,
// or a "pending: ..." hint before first use.
type StoreStatus struct {
	Backend              string `json:"backend"`
	RemoteConfigured     bool   `json:"remote_configured"`
	EmbeddingConfigured  bool   `json:"embedding_configured"`
	GenerationConfigured bool   `json:"generation_configured"`
	RecordCount          int    `json:"record_count"`
}
