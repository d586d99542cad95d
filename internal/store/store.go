// Package store normalizes writes and queries against the vector store,
// enforcing the ingestion record schema.
package store

import "context"

// Record is one ingested unit: a stable ID, its embedding, the display
// content (chunk text for papers, file name for images), and string metadata.
// Bundling the four fields per unit keeps IDs, vectors, metadata, and content
// aligned by construction.
type Record struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]string
}

// Match is one query hit. Distance is ascending-better; for unit-normalized
// embeddings similarity = 1 - distance.
type Match struct {
	ID       string
	Content  string
	Metadata map[string]string
	Distance float64
}

// Store persists ingested units per named collection and answers
// nearest-neighbor queries. Collections are independent similarity spaces
// created lazily on first use and never merged; within one collection every
// vector must have the dimensionality fixed by its first write. Writes are
// append-only; failures surface to the caller without internal retries.
// Implementations must tolerate concurrent readers and writers.
type Store interface {
	Add(ctx context.Context, collection string, records []Record) error
	Query(ctx context.Context, collection string, vector []float32, k int) ([]Match, error)
	// Has reports whether a unit with the given ID exists in the collection.
	Has(ctx context.Context, collection, id string) (bool, error)
	// Count returns the number of units in the collection (0 if it does not exist).
	Count(ctx context.Context, collection string) (int64, error)
	Close() error
}
