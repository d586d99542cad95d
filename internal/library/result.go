// Package library implements the ingestion and retrieval pipelines for
// papers and images: extract, chunk, classify, persist, embed, index.
package library

import "fmt"

// IngestStatus identifies the terminal state of one ingested item.
type IngestStatus string

const (
	StatusOK               IngestStatus = "ok"
	StatusInvalidInput     IngestStatus = "invalid_input"
	StatusExtractionFailed IngestStatus = "extraction_failed"
	StatusEmbeddingFailed  IngestStatus = "embedding_failed"
	StatusStoreFailed      IngestStatus = "store_failed"
)

// IngestResult reports the outcome of ingesting a single file. Failures are
// results, not errors: batch operations collect one result per item so a bad
// input never aborts the rest of the batch.
type IngestResult struct {
	File       string       `json:"file"`
	Status     IngestStatus `json:"status"`
	Reason     string       `json:"reason,omitempty"`
	Topic      string       `json:"topic,omitempty"`
	StoredPath string       `json:"stored_path,omitempty"`
	Chunks     int          `json:"chunks,omitempty"`
}

// OK reports whether the item was ingested successfully.
func (r IngestResult) OK() bool {
	return r.Status == StatusOK
}

// Summary returns a one-line count of successes and failures in a batch.
func Summary(results []IngestResult) string {
	var ok, failed int
	for _, r := range results {
		if r.OK() {
			ok++
		} else {
			failed++
		}
	}
	return fmt.Sprintf("%d succeeded, %d failed", ok, failed)
}
