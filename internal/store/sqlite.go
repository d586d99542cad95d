package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/shiori/pkg/utils"
)

// SQLiteStore implements Store using SQLite for persistence and an in-memory
// brute-force index per collection for nearest-neighbor search. All vectors of
// a collection are loaded into the cache on open and kept in sync on Add, so
// queries never touch the database except to hydrate content and metadata for
// the selected hits. Suitable for personal-scale corpora.
type SQLiteStore struct {
	db    *sql.DB
	mu    sync.RWMutex
	cache map[string]*collectionIndex
}

type collectionIndex struct {
	dimensions int
	ids        []string
	vectors    [][]float32
}

// NewSQLiteStore opens or creates a SQLite database at dbPath, initializes the
// schema, and loads every existing collection into memory. Parent directories
// are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStore{db: db, cache: make(map[string]*collectionIndex)}
	if err := s.loadCollections(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load collections: %w", err)
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		dimensions INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		vector BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (collection) REFERENCES collections(name)
	);

	CREATE INDEX IF NOT EXISTS idx_units_collection ON units(collection);
	`
	_, err := db.Exec(schema)
	return err
}

// loadCollections hydrates the in-memory index for every persisted collection.
func (s *SQLiteStore) loadCollections() error {
	rows, err := s.db.Query(`SELECT name, dimensions FROM collections`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var dims int
		if err := rows.Scan(&name, &dims); err != nil {
			return err
		}
		s.cache[name] = &collectionIndex{dimensions: dims}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for name, idx := range s.cache {
		vrows, err := s.db.Query(`SELECT id, vector FROM units WHERE collection = ?`, name)
		if err != nil {
			return err
		}
		for vrows.Next() {
			var id string
			var blob []byte
			if err := vrows.Scan(&id, &blob); err != nil {
				_ = vrows.Close()
				return err
			}
			idx.ids = append(idx.ids, id)
			idx.vectors = append(idx.vectors, bytesToFloat32Slice(blob))
		}
		if err := vrows.Err(); err != nil {
			_ = vrows.Close()
			return err
		}
		_ = vrows.Close()
	}
	return nil
}

// ensureCollectionLocked returns the index for the collection, creating it
// with the given dimensionality if it does not exist yet. Caller holds mu.
func (s *SQLiteStore) ensureCollectionLocked(collection string, dimensions int) (*collectionIndex, error) {
	if idx, ok := s.cache[collection]; ok {
		return idx, nil
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if _, err := s.db.Exec(
		`INSERT INTO collections (name, dimensions) VALUES (?, ?)`,
		collection, dimensions,
	); err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", collection, err)
	}
	idx := &collectionIndex{dimensions: dimensions}
	s.cache[collection] = idx
	return idx, nil
}

// Add persists the records and appends their vectors to the in-memory index.
// The first write to a collection fixes its dimensionality; later writes with
// a different vector length are rejected before anything is persisted.
func (s *SQLiteStore) Add(ctx context.Context, collection string, records []Record) error {
	if collection == "" {
		return fmt.Errorf("collection name is empty")
	}
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record ID is empty")
		}
		if len(r.Vector) == 0 {
			return fmt.Errorf("record %s has an empty vector", r.ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.ensureCollectionLocked(collection, len(records[0].Vector))
	if err != nil {
		return err
	}
	for _, r := range records {
		if len(r.Vector) != idx.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(r.Vector), idx.dimensions)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, r := range records {
		metadataJSON, err := json.Marshal(r.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to marshal metadata for %s: %w", r.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO units (id, collection, content, metadata, vector) VALUES (?, ?, ?, ?, ?)`,
			r.ID, collection, r.Content, string(metadataJSON), float32SliceToBytes(r.Vector),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert unit %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	for _, r := range records {
		vec := make([]float32, idx.dimensions)
		copy(vec, r.Vector)
		idx.ids = append(idx.ids, r.ID)
		idx.vectors = append(idx.vectors, vec)
	}
	return nil
}

// Query returns up to k nearest units by ascending distance (1 - cosine
// similarity). An unknown collection yields no matches.
func (s *SQLiteStore) Query(ctx context.Context, collection string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	idx, ok := s.cache[collection]
	if !ok {
		s.mu.RUnlock()
		return nil, nil
	}
	if len(vector) != idx.dimensions {
		s.mu.RUnlock()
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vector), idx.dimensions)
	}

	type scored struct {
		id       string
		distance float64
	}
	scores := make([]scored, len(idx.ids))
	for i, vec := range idx.vectors {
		scores[i] = scored{id: idx.ids[i], distance: 1 - utils.CosineSimilarity(vector, vec)}
	}
	s.mu.RUnlock()

	sort.Slice(scores, func(i, j int) bool { return scores[i].distance < scores[j].distance })
	if k > len(scores) {
		k = len(scores)
	}

	matches := make([]Match, 0, k)
	for i := 0; i < k; i++ {
		var content, metadataJSON string
		err := s.db.QueryRowContext(ctx,
			`SELECT content, metadata FROM units WHERE id = ?`, scores[i].id,
		).Scan(&content, &metadataJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to load unit %s: %w", scores[i].id, err)
		}
		var metadata map[string]string
		if metadataJSON != "" {
			if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", scores[i].id, err)
			}
		}
		matches = append(matches, Match{
			ID:       scores[i].id,
			Content:  content,
			Metadata: metadata,
			Distance: scores[i].distance,
		})
	}
	return matches, nil
}

// Has reports whether the collection contains a unit with the given ID.
func (s *SQLiteStore) Has(ctx context.Context, collection, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM units WHERE id = ? AND collection = ?`, id, collection,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the number of units in the collection.
func (s *SQLiteStore) Count(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM units WHERE collection = ?`, collection,
	).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
