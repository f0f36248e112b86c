package pgstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/selq/internal/ir"
	"github.com/roach88/selq/internal/querysql"
	"github.com/roach88/selq/internal/selection"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return New(mock), mock
}

func TestMigrate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS records").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
}

func TestPut(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`WITH written AS \(INSERT INTO records .+ ON CONFLICT \(collection, id\) DO UPDATE SET data = EXCLUDED.data, seq = EXCLUDED.seq RETURNING seq\) ` +
		`INSERT INTO records_meta .+ GREATEST\(records_meta.value, EXCLUDED.value\)`).
		WithArgs("albums", "a1", `{"id":"a1","name":"Purple Rain","year":1984}`, int64(3)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	stored, err := s.Put(context.Background(), ir.Record{
		Collection: "albums",
		ID:         "a1",
		Data:       []byte(`{"year": 1984, "name": "Purple Rain"}`),
		Seq:        3,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"id":"a1","name":"Purple Rain","year":1984}`, string(stored.Data))
}

func TestPut_InvalidDocumentNeverReachesDatabase(t *testing.T) {
	s, _ := newMockStore(t)

	_, err := s.Put(context.Background(), ir.Record{Collection: "albums", ID: "a1", Data: []byte(`[1]`)})
	assert.Error(t, err)
}

func TestGet(t *testing.T) {
	s, mock := newMockStore(t)

	// jsonb hands keys back in its own order.
	mock.ExpectQuery(`SELECT data, seq FROM records WHERE collection = \$1 AND id = \$2`).
		WithArgs("albums", "a1").
		WillReturnRows(pgxmock.NewRows([]string{"data", "seq"}).
			AddRow([]byte(`{"id": "a1", "year": 1984, "name": "Purple Rain"}`), int64(3)))

	rec, found, err := s.Get(context.Background(), "albums", "a1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"id":"a1","name":"Purple Rain","year":1984}`, string(rec.Data))
	assert.Equal(t, int64(3), rec.Seq)
}

func TestGet_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT data, seq FROM records`).
		WithArgs("albums", "nope").
		WillReturnRows(pgxmock.NewRows([]string{"data", "seq"}))

	_, found, err := s.Get(context.Background(), "albums", "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDelete(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`WITH gone AS \(DELETE FROM records WHERE collection = \$1 AND id = \$2 RETURNING id\) ` +
		`INSERT INTO records_meta \(key, value\) SELECT 'maxseq', \$3::bigint FROM gone`).
		WithArgs("albums", "a1", int64(7)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`WITH gone AS \(DELETE FROM records`).
		WithArgs("albums", "a1", int64(8)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	found, err := s.Delete(context.Background(), "albums", "a1", 7)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = s.Delete(context.Background(), "albums", "a1", 8)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFetch(t *testing.T) {
	s, mock := newMockStore(t)

	sel, err := selection.Compile("{artist} AND {>year} ORDER BY year DESC", selection.ModeStructural, selection.Bindings{
		Named: map[string]ir.Literal{"artist": ir.String("Prince"), "year": ir.Int(1980)},
	})
	require.NoError(t, err)

	query, args, err := querysql.NewSQLCompiler(querysql.Postgres).Compile("albums", sel)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(args...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "data", "seq"}).
			AddRow("a2", []byte(`{"year": 1987, "id": "a2", "artist": "Prince"}`), int64(5)).
			AddRow("a1", []byte(`{"year": 1984, "id": "a1", "artist": "Prince"}`), int64(2)))

	records, err := s.Fetch(context.Background(), "albums", sel)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a2", records[0].ID)
	assert.Equal(t, `{"artist":"Prince","id":"a2","year":1987}`, string(records[0].Data))
	assert.Equal(t, "albums", records[1].Collection)
	assert.Equal(t, []int64{5, 2}, []int64{records[0].Seq, records[1].Seq})
}

func TestFetch_PropagatesErrors(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, data, seq FROM records`).
		WillReturnError(errors.New("connection reset"))

	sel, err := selection.Parse("true")
	require.NoError(t, err)

	_, err = s.Fetch(context.Background(), "albums", sel)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestMaxSeqAndCollections(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(maxSeqSQL)).
		WillReturnRows(pgxmock.NewRows([]string{"greatest"}).AddRow(int64(12)))
	mock.ExpectQuery(`SELECT DISTINCT collection FROM records`).
		WillReturnRows(pgxmock.NewRows([]string{"collection"}).AddRow("albums").AddRow("artists"))

	seq, err := s.MaxSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), seq)

	names, err := s.Collections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"albums", "artists"}, names)
}
