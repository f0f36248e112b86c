package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/selq/internal/engine"
	"github.com/roach88/selq/internal/kvstore"
	"github.com/roach88/selq/internal/store"
)

// backends returns a fresh instance of every embedded backend.
func backends(t *testing.T) map[string]engine.Backend {
	t.Helper()

	sqlite, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	badger, err := kvstore.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { badger.Close() })

	return map[string]engine.Backend{"sqlite": sqlite, "badger": badger}
}

func loadAlbums(t *testing.T) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "albums.yaml"))
	require.NoError(t, err)
	return s
}

func TestRunWithGolden_EveryBackend(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			result := RunWithGolden(t, loadAlbums(t), backend)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_ReportsMismatches(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: mismatches
description: "expectations that do not hold"
collection: albums
records:
  - { id: a1, artist: Prince, year: 1984 }
  - { id: a2, artist: Prince, year: 1987 }
queries:
  - name: wrong_order
    query: "artist = 'Prince' ORDER BY year DESC"
    expect: [a1, a2]
  - name: expected_error
    query: "year > 1"
    error: parse
  - name: unexpected_error
    query: "year >"
    expect: [a1]
live:
  - name: wrong_change
    query: "year > 1985"
    steps:
      - put: { id: a3, year: 1990 }
        expect: ["update a3"]
`))
	require.NoError(t, err)

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			h, err := New(backend)
			require.NoError(t, err)

			result, err := h.Run(context.Background(), scenario)
			require.NoError(t, err)

			assert.False(t, result.Pass)
			assert.Equal(t, []string{
				"query wrong_order: expected ids [a1, a2], got [a2, a1]",
				"query expected_error: expected parse error, got ids [a1, a2]",
				"query unexpected_error: unexpected parse error: " + result.Queries[2].Error,
				"live wrong_change step 1: expected changes [update a3], got [add a3]",
			}, result.Errors)

			report := Report(result)
			assert.Contains(t, report, "result: fail\n")
			assert.Contains(t, report, "  step 1: add a3\n")
		})
	}
}

func TestRun_StampsEveryPut(t *testing.T) {
	backend, err := kvstore.Open("")
	require.NoError(t, err)
	defer backend.Close()

	h, err := New(backend)
	require.NoError(t, err)

	scenario := loadAlbums(t)
	_, err = h.Run(context.Background(), scenario)
	require.NoError(t, err)

	seq, err := backend.MaxSeq(context.Background())
	require.NoError(t, err)
	// 5 seeded records and 7 live puts. Deletes advance the clock but
	// leave no stored seq behind.
	assert.Equal(t, int64(12), seq)
}
