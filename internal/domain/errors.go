package domain

import "errors"

var (
	// ErrNoDocuments is returned by a query against an empty store.
	ErrNoDocuments = errors.New("no documents uploaded")

	// ErrNoEmbeddings is returned when every chunk of a document failed to
	// embed, which makes the ingestion semantically empty.
	ErrNoEmbeddings = errors.New("no embeddings generated")

	// ErrEmptyDocument is returned when the extracted text is empty.
	ErrEmptyDocument = errors.New("document text is empty")
)
