package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAddAndQueryOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []Record{
		{ID: "a", Vector: []float32{1, 0, 0}, Content: "aligned"},
		{ID: "b", Vector: []float32{0, 1, 0}, Content: "orthogonal"},
		{ID: "c", Vector: []float32{0.9, 0.1, 0}, Content: "close"},
	}
	if err := s.Add(ctx, "test_collection", records); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	matches, err := s.Query(ctx, "test_collection", []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].ID != "a" {
		t.Errorf("expected nearest match a, got %s", matches[0].ID)
	}
	if matches[1].ID != "c" {
		t.Errorf("expected second match c, got %s", matches[1].ID)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Distance < matches[i-1].Distance {
			t.Errorf("matches not in ascending distance order at %d", i)
		}
	}
	if matches[0].Content != "aligned" {
		t.Errorf("expected content hydrated from storage, got %q", matches[0].Content)
	}
}

func TestQueryTruncatesToAvailable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Add(ctx, "test_collection", []Record{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{0, 1}},
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	matches, err := s.Query(ctx, "test_collection", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("expected 2 matches, got %d", len(matches))
	}

	matches, err = s.Query(ctx, "test_collection", []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("expected 1 match, got %d", len(matches))
	}
}

func TestDimensionMismatchRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Add(ctx, "test_collection", []Record{{ID: "a", Vector: []float32{1, 0, 0}}}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	err := s.Add(ctx, "test_collection", []Record{{ID: "b", Vector: []float32{1, 0}}})
	if err == nil {
		t.Error("expected error adding vector with wrong dimensions")
	}

	if _, err := s.Query(ctx, "test_collection", []float32{1, 0}, 1); err == nil {
		t.Error("expected error querying with wrong dimensions")
	}
}

func TestCollectionsAreIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Add(ctx, "first", []Record{{ID: "a", Vector: []float32{1, 0, 0}}}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.Add(ctx, "second", []Record{{ID: "b", Vector: []float32{1, 0}}}); err != nil {
		t.Fatalf("Add to second collection failed: %v", err)
	}

	matches, err := s.Query(ctx, "second", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "b" {
		t.Errorf("expected only b from second collection, got %v", matches)
	}
}

func TestQueryUnknownCollection(t *testing.T) {
	s := newTestStore(t)

	matches, err := s.Query(context.Background(), "missing", []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	records := []Record{{
		ID:       "a",
		Vector:   []float32{0.6, 0.8},
		Content:  "persisted content",
		Metadata: map[string]string{"topic": "ML"},
	}}
	if err := s.Add(ctx, "test_collection", records); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	matches, err := s2.Query(ctx, "test_collection", []float32{0.6, 0.8}, 1)
	if err != nil {
		t.Fatalf("Query after reopen failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match after reopen, got %d", len(matches))
	}
	if matches[0].Content != "persisted content" {
		t.Errorf("content not persisted: %q", matches[0].Content)
	}
	if matches[0].Metadata["topic"] != "ML" {
		t.Errorf("metadata not persisted: %v", matches[0].Metadata)
	}
	if matches[0].Distance > 1e-6 {
		t.Errorf("expected near-zero distance for identical vector, got %f", matches[0].Distance)
	}
}

func TestHas(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Add(ctx, "test_collection", []Record{{ID: "a", Vector: []float32{1, 0}}}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	ok, err := s.Has(ctx, "test_collection", "a")
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if !ok {
		t.Error("expected Has to report existing unit")
	}

	ok, err = s.Has(ctx, "test_collection", "missing")
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if ok {
		t.Error("expected Has to report missing unit as absent")
	}

	ok, err = s.Has(ctx, "other_collection", "a")
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if ok {
		t.Error("Has must not find a unit in a different collection")
	}
}

func TestCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx, "test_collection")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 units, got %d", n)
	}

	if err := s.Add(ctx, "test_collection", []Record{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{0, 1}},
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	n, err = s.Count(ctx, "test_collection")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 units, got %d", n)
	}
}

func TestDuplicateIDRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Add(ctx, "test_collection", []Record{{ID: "a", Vector: []float32{1, 0}}}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.Add(ctx, "test_collection", []Record{{ID: "a", Vector: []float32{0, 1}}}); err == nil {
		t.Error("expected error inserting duplicate ID")
	}
}

func TestEmptyBatchIsNoop(t *testing.T) {
	s := newTestStore(t)
	if err := s.Add(context.Background(), "test_collection", nil); err != nil {
		t.Fatalf("empty Add should succeed: %v", err)
	}
}
