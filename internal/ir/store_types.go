package ir

import (
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// IDField is the document field every stored record carries its id under.
const IDField = "id"

// Record is a single JSON document in a named collection.
// Data is always a canonical JSON object (see CanonicalDocument) once it
// has passed through a store.
type Record struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
	Seq        int64           `json:"seq"` // Logical clock of the last write
}

// Canonicalize validates a record for storage: collection and id must be
// non-empty, the id is NFC normalized, and Data is rewritten with
// CanonicalDocument.
func Canonicalize(rec Record) (Record, error) {
	if rec.Collection == "" {
		return Record{}, fmt.Errorf("record has no collection")
	}
	if rec.ID == "" {
		return Record{}, fmt.Errorf("record in %s has no id", rec.Collection)
	}
	rec.ID = norm.NFC.String(rec.ID)
	data, err := CanonicalDocument(rec.Data, rec.ID)
	if err != nil {
		return Record{}, fmt.Errorf("record %s/%s: %w", rec.Collection, rec.ID, err)
	}
	rec.Data = data
	return rec, nil
}

// ChangeKind distinguishes the mutations a store reports.
type ChangeKind int

const (
	// ChangePut is an insert or an update.
	ChangePut ChangeKind = iota + 1
	// ChangeDelete removes a record.
	ChangeDelete
)

func (k ChangeKind) String() string {
	switch k {
	case ChangePut:
		return "put"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Mutation is a write applied to a collection. For ChangeDelete only
// Collection, ID and Seq of Record are meaningful.
type Mutation struct {
	Kind   ChangeKind
	Record Record
}
