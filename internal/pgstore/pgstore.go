// Package pgstore keeps record collections in PostgreSQL as jsonb and
// evaluates selections server-side through querysql's Postgres dialect.
//
// jsonb does not preserve key order, so documents are re-canonicalized on
// the way out and compare byte-for-byte with the other stores.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/selq/internal/ir"
	"github.com/roach88/selq/internal/queryir"
	"github.com/roach88/selq/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// DB is the subset of *pgxpool.Pool the store needs. pgxmock pools
// satisfy it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a PostgreSQL-backed record store.
type Store struct {
	db    DB
	close func()
}

// bumpMaxSeqSQL raises the stored high-water mark to value for every row
// of the CTE named source.
const bumpMaxSeqSQL = `INSERT INTO records_meta (key, value) SELECT 'maxseq', %s FROM %s ` +
	`ON CONFLICT (key) DO UPDATE SET value = GREATEST(records_meta.value, EXCLUDED.value)`

// maxSeqSQL reads the high-water mark, falling back to the records table
// for rows written before records_meta existed.
const maxSeqSQL = `SELECT GREATEST(` +
	`(SELECT COALESCE(MAX(value), 0) FROM records_meta WHERE key = 'maxseq'), ` +
	`(SELECT COALESCE(MAX(seq), 0) FROM records))`

func builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// Open connects to the database at dsn and creates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	s := &Store{db: pool, close: pool.Close}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection. The caller keeps ownership of db.
func New(db DB) *Store {
	return &Store{db: db}
}

// Migrate creates the records and records_meta tables and their indexes
// if missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

// Close releases the pool opened by Open.
func (s *Store) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

// Put inserts or replaces a record and returns its stored form.
func (s *Store) Put(ctx context.Context, rec ir.Record) (ir.Record, error) {
	rec, err := ir.Canonicalize(rec)
	if err != nil {
		return ir.Record{}, fmt.Errorf("put record: %w", err)
	}

	query, args, err := builder().
		Insert(querysql.DefaultTable).
		Columns("collection", "id", "data", "seq").
		Values(rec.Collection, rec.ID, sq.Expr("?::jsonb", string(rec.Data)), rec.Seq).
		Suffix("ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, seq = EXCLUDED.seq RETURNING seq").
		ToSql()
	if err != nil {
		return ir.Record{}, fmt.Errorf("build insert: %w", err)
	}
	query = "WITH written AS (" + query + ") " + fmt.Sprintf(bumpMaxSeqSQL, "seq", "written")

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return ir.Record{}, fmt.Errorf("put record %s/%s: %w", rec.Collection, rec.ID, err)
	}
	return rec, nil
}

// Get returns one record. found is false when it does not exist.
func (s *Store) Get(ctx context.Context, collection, id string) (ir.Record, bool, error) {
	query, args, err := builder().
		Select("data", "seq").
		From(querysql.DefaultTable).
		Where(sq.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return ir.Record{}, false, fmt.Errorf("build select: %w", err)
	}

	var (
		raw []byte
		seq int64
	)
	err = s.db.QueryRow(ctx, query, args...).Scan(&raw, &seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return ir.Record{}, false, nil
	}
	if err != nil {
		return ir.Record{}, false, fmt.Errorf("get record %s/%s: %w", collection, id, err)
	}

	data, err := ir.CanonicalDocument(raw, id)
	if err != nil {
		return ir.Record{}, false, fmt.Errorf("get record %s/%s: %w", collection, id, err)
	}
	return ir.Record{Collection: collection, ID: id, Data: data, Seq: seq}, true, nil
}

// Delete removes a record. seq is the clock value of the delete; it
// raises the stored high-water mark only when a record was removed.
// found is false when there was nothing to remove.
func (s *Store) Delete(ctx context.Context, collection, id string, seq int64) (bool, error) {
	query, args, err := builder().
		Delete(querysql.DefaultTable).
		Where(sq.Eq{"collection": collection, "id": id}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete: %w", err)
	}
	args = append(args, seq)
	query = "WITH gone AS (" + query + ") " +
		fmt.Sprintf(bumpMaxSeqSQL, fmt.Sprintf("$%d::bigint", len(args)), "gone")

	// The outer INSERT affects one row per deleted record.
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete record %s/%s: %w", collection, id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Fetch evaluates sel in PostgreSQL and returns matching records in
// selection order, ties broken by id.
func (s *Store) Fetch(ctx context.Context, collection string, sel queryir.Selection) ([]ir.Record, error) {
	query, args, err := querysql.NewSQLCompiler(querysql.Postgres).Compile(collection, sel)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", collection, err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", collection, err)
	}
	defer rows.Close()

	records := []ir.Record{}
	for rows.Next() {
		var (
			id  string
			raw []byte
			seq int64
		)
		if err := rows.Scan(&id, &raw, &seq); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		data, err := ir.CanonicalDocument(raw, id)
		if err != nil {
			return nil, fmt.Errorf("record %s/%s: %w", collection, id, err)
		}
		records = append(records, ir.Record{Collection: collection, ID: id, Data: data, Seq: seq})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// MaxSeq returns the highest seq ever issued to a put or a delete, or 0
// for an empty database.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRow(ctx, maxSeqSQL).Scan(&seq); err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq, nil
}

// Collections lists the collection names that hold at least one record,
// sorted bytewise.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT collection FROM records ORDER BY collection COLLATE "C"`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return names, nil
}
