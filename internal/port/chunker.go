package port

// Chunker splits extracted text into retrievable units.
type Chunker interface {
	// Split returns the ordered chunk texts for the given input.
	// Boundaries are deterministic: identical input always yields
	// byte-for-byte identical chunks.
	Split(text string) []string
}
