package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/selq/internal/ir"
	"github.com/roach88/selq/internal/queryir"
	"github.com/roach88/selq/internal/querysql"
)

// Put inserts or replaces a record. The document is canonicalized and the
// id written into it before storage. Returns the stored form.
func (s *Store) Put(ctx context.Context, rec ir.Record) (ir.Record, error) {
	rec, err := ir.Canonicalize(rec)
	if err != nil {
		return ir.Record{}, fmt.Errorf("put record: %w", err)
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO records (collection, id, data, seq)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, seq = excluded.seq
		`, rec.Collection, rec.ID, string(rec.Data), rec.Seq); err != nil {
			return err
		}
		return bumpMaxSeq(ctx, tx, rec.Seq)
	})
	if err != nil {
		return ir.Record{}, fmt.Errorf("put record %s/%s: %w", rec.Collection, rec.ID, err)
	}
	return rec, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func bumpMaxSeq(ctx context.Context, tx *sql.Tx, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO records_meta (key, value) VALUES ('maxseq', ?)
		ON CONFLICT(key) DO UPDATE SET value = MAX(value, excluded.value)
	`, seq)
	return err
}

// Get returns one record. found is false when it does not exist.
func (s *Store) Get(ctx context.Context, collection, id string) (rec ir.Record, found bool, err error) {
	var data string
	err = s.db.QueryRowContext(ctx, `
		SELECT data, seq FROM records WHERE collection = ? AND id = ?
	`, collection, id).Scan(&data, &rec.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Record{}, false, nil
	}
	if err != nil {
		return ir.Record{}, false, fmt.Errorf("get record %s/%s: %w", collection, id, err)
	}
	rec.Collection = collection
	rec.ID = id
	rec.Data = []byte(data)
	return rec, true, nil
}

// Delete removes a record. seq is the clock value of the delete; it
// raises the stored high-water mark only when a record was removed.
// found is false when there was nothing to remove.
func (s *Store) Delete(ctx context.Context, collection, id string, seq int64) (found bool, err error) {
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection = ? AND id = ?`, collection, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil || n == 0 {
			return err
		}
		found = true
		return bumpMaxSeq(ctx, tx, seq)
	})
	if err != nil {
		return false, fmt.Errorf("delete record %s/%s: %w", collection, id, err)
	}
	return found, nil
}

// Fetch evaluates sel inside SQLite and returns the matching records of a
// collection in selection order, ties broken by id.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Fetch(ctx context.Context, collection string, sel queryir.Selection) ([]ir.Record, error) {
	query, args, err := querysql.NewSQLCompiler(querysql.SQLite).Compile(collection, sel)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", collection, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", collection, err)
	}
	defer rows.Close()

	records := []ir.Record{}
	for rows.Next() {
		var (
			id, data string
			seq      int64
		)
		if err := rows.Scan(&id, &data, &seq); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, ir.Record{Collection: collection, ID: id, Data: []byte(data), Seq: seq})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// MaxSeq returns the highest seq ever issued to a put or a delete, or 0
// for an empty store. The engine uses it to resume its logical clock.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(
			(SELECT COALESCE(MAX(value), 0) FROM records_meta WHERE key = 'maxseq'),
			(SELECT COALESCE(MAX(seq), 0) FROM records)
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq, nil
}

// Collections lists the collection names that hold at least one record,
// sorted.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT collection FROM records ORDER BY collection COLLATE BINARY ASC
	`)
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
