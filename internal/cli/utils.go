// Package cli provides CLI output utilities for Shiori.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/shiori/internal/library"
	"github.com/hyperjump/shiori/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one result per line, grep-friendly.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WritePaperResults writes paper search results to w in the given format.
func WritePaperResults(w io.Writer, results []library.PaperSearchResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, results)
	}
	if format == OutputCompact {
		for _, r := range results {
			fmt.Fprintf(w, "%.4f\t%s\tpage %d\t%s\t%s\n",
				r.Similarity, r.FileName, r.Page, r.Topic, utils.Truncate(r.MatchedChunk, 80))
		}
		return nil
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "No matching papers.")
		return nil
	}
	fmt.Fprintf(w, "\nFound %d matching chunks\n\n", len(results))
	for i, r := range results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Similarity: %.4f\n", i+1, r.Similarity)
		fmt.Fprintf(w, "File: %s (page %d, topic %s)\n", r.FileName, r.Page, r.Topic)
		fmt.Fprintf(w, "Path: %s\n", r.Path)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(r.MatchedChunk, 200))
	}
	return nil
}

// WriteImageResults writes image search results to w in the given format.
func WriteImageResults(w io.Writer, results []library.ImageSearchResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, results)
	}
	if format == OutputCompact {
		for _, r := range results {
			fmt.Fprintf(w, "%.4f\t%s\n", r.Similarity, r.Path)
		}
		return nil
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "No matching images.")
		return nil
	}
	fmt.Fprintf(w, "\nFound %d matching images\n\n", len(results))
	for i, r := range results {
		fmt.Fprintf(w, "Rank: %d | Similarity: %.4f | %s\n", i+1, r.Similarity, r.Path)
	}
	return nil
}

// WriteIngestResults writes batch ingestion results to w in the given format,
// one line per item plus a summary.
func WriteIngestResults(w io.Writer, results []library.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, results)
	}
	for _, r := range results {
		if r.OK() {
			if r.Topic != "" {
				fmt.Fprintf(w, "ok    %s -> %s (topic %s, %d chunks)\n", r.File, r.StoredPath, r.Topic, r.Chunks)
			} else if r.Reason != "" {
				fmt.Fprintf(w, "ok    %s (%s)\n", r.File, r.Reason)
			} else {
				fmt.Fprintf(w, "ok    %s -> %s\n", r.File, r.StoredPath)
			}
		} else {
			fmt.Fprintf(w, "fail  %s: %s (%s)\n", r.File, r.Reason, r.Status)
		}
	}
	fmt.Fprintln(w, library.Summary(results))
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
