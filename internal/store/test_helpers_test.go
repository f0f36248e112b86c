package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/roach88/selq/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestAlbum builds an albums record with the usual sample fields.
func createTestAlbum(id, name, artist string, year int, genre string, seq int64) ir.Record {
	data, err := json.Marshal(map[string]any{
		"name":     name,
		"artist":   artist,
		"year":     year,
		"metadata": map[string]any{"genre": genre},
	})
	if err != nil {
		panic(err)
	}
	return ir.Record{Collection: "albums", ID: id, Data: data, Seq: seq}
}

// seedAlbums writes a small fixed catalogue.
func seedAlbums(t *testing.T, s *Store) {
	t.Helper()
	albums := []ir.Record{
		createTestAlbum("a1", "Purple Rain", "Prince", 1984, "pop", 1),
		createTestAlbum("a2", "Sign o' the Times", "Prince", 1987, "funk", 2),
		createTestAlbum("a3", "Thriller", "Michael Jackson", 1982, "pop", 3),
		createTestAlbum("a4", "Nevermind", "Nirvana", 1991, "grunge", 4),
		createTestAlbum("a5", "Appetite for Destruction", "Guns N' Roses", 1987, "rock", 5),
	}
	for _, rec := range albums {
		if _, err := s.Put(context.Background(), rec); err != nil {
			t.Fatalf("Put(%s) failed: %v", rec.ID, err)
		}
	}
}

func recordIDs(records []ir.Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
