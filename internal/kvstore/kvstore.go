// Package kvstore keeps record collections in an embedded Badger database
// and evaluates selections in memory with queryeval.
//
// Key layout:
//
//	rec/<collection> 0x00 <id>  ->  seq (8 bytes, big endian) || canonical JSON
//	meta/maxseq                 ->  highest seq of any put or delete (8 bytes, big endian)
//
// Keys sort by collection then id, so a prefix scan yields a collection in
// id order.
package kvstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/selq/internal/ir"
	"github.com/roach88/selq/internal/queryeval"
	"github.com/roach88/selq/internal/queryir"
)

var (
	recordPrefix = []byte("rec/")
	maxSeqKey    = []byte("meta/maxseq")
)

// Store is a Badger-backed record store.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a store at path. An empty path opens an
// in-memory database that vanishes on Close.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func recordKey(collection, id string) []byte {
	key := make([]byte, 0, len(recordPrefix)+len(collection)+1+len(id))
	key = append(key, recordPrefix...)
	key = append(key, collection...)
	key = append(key, 0)
	return append(key, id...)
}

func collectionPrefix(collection string) []byte {
	key := make([]byte, 0, len(recordPrefix)+len(collection)+1)
	key = append(key, recordPrefix...)
	key = append(key, collection...)
	return append(key, 0)
}

func encodeValue(seq int64, data []byte) []byte {
	buf := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(buf, uint64(seq))
	copy(buf[8:], data)
	return buf
}

func decodeValue(val []byte) (int64, []byte, error) {
	if len(val) < 8 {
		return 0, nil, fmt.Errorf("corrupt record value (%d bytes)", len(val))
	}
	data := make([]byte, len(val)-8)
	copy(data, val[8:])
	return int64(binary.BigEndian.Uint64(val)), data, nil
}

// Put inserts or replaces a record and returns its stored form.
func (s *Store) Put(ctx context.Context, rec ir.Record) (ir.Record, error) {
	if strings.IndexByte(rec.Collection, 0) >= 0 {
		return ir.Record{}, fmt.Errorf("put record: collection name contains NUL")
	}
	rec, err := ir.Canonicalize(rec)
	if err != nil {
		return ir.Record{}, fmt.Errorf("put record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(recordKey(rec.Collection, rec.ID), encodeValue(rec.Seq, rec.Data)); err != nil {
			return err
		}
		return bumpMaxSeq(txn, rec.Seq)
	})
	if err != nil {
		return ir.Record{}, fmt.Errorf("put record %s/%s: %w", rec.Collection, rec.ID, err)
	}
	return rec, nil
}

func bumpMaxSeq(txn *badger.Txn, seq int64) error {
	current, err := readMaxSeq(txn)
	if err != nil {
		return err
	}
	if seq <= current {
		return nil
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(seq))
	return txn.Set(maxSeqKey, buf)
}

func readMaxSeq(txn *badger.Txn) (int64, error) {
	item, err := txn.Get(maxSeqKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var seq int64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt max seq (%d bytes)", len(val))
		}
		seq = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return seq, err
}

// Get returns one record. found is false when it does not exist.
func (s *Store) Get(ctx context.Context, collection, id string) (rec ir.Record, found bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(collection, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			seq, data, err := decodeValue(val)
			if err != nil {
				return err
			}
			rec = ir.Record{Collection: collection, ID: id, Data: data, Seq: seq}
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ir.Record{}, false, nil
	}
	if err != nil {
		return ir.Record{}, false, fmt.Errorf("get record %s/%s: %w", collection, id, err)
	}
	return rec, true, nil
}

// Delete removes a record and records seq as the high-water mark when a
// record was removed. found is false when there was nothing to remove.
func (s *Store) Delete(ctx context.Context, collection, id string, seq int64) (found bool, err error) {
	key := recordKey(collection, id)
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		found = true
		if err := txn.Delete(key); err != nil {
			return err
		}
		return bumpMaxSeq(txn, seq)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete record %s/%s: %w", collection, id, err)
	}
	return found, nil
}

// Scan returns every record of a collection in id order.
func (s *Store) Scan(ctx context.Context, collection string) ([]ir.Record, error) {
	prefix := collectionPrefix(collection)
	records := []ir.Record{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			id := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				seq, data, err := decodeValue(val)
				if err != nil {
					return err
				}
				records = append(records, ir.Record{Collection: collection, ID: id, Data: data, Seq: seq})
				return nil
			})
			if err != nil {
				return fmt.Errorf("record %s/%s: %w", collection, id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	return records, nil
}

// Fetch returns the records of a collection matching sel, in selection
// order with ties broken by id.
func (s *Store) Fetch(ctx context.Context, collection string, sel queryir.Selection) ([]ir.Record, error) {
	records, err := s.Scan(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", collection, err)
	}
	return queryeval.Filter(sel, records), nil
}

// MaxSeq returns the highest seq ever written, or 0 for an empty store.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		seq, err = readMaxSeq(txn)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq, nil
}

// Collections lists the collection names that hold at least one record,
// sorted.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	names := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = recordPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(recordPrefix); it.ValidForPrefix(recordPrefix); it.Next() {
			rest := it.Item().Key()[len(recordPrefix):]
			end := bytes.IndexByte(rest, 0)
			if end < 0 {
				continue
			}
			name := string(rest[:end])
			if len(names) == 0 || names[len(names)-1] != name {
				names = append(names, name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}
