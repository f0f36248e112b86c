// Package testutil holds record fixtures and query helpers shared by the
// store, engine and harness tests.
package testutil

import (
	"encoding/json"

	"github.com/roach88/selq/internal/ir"
)

// Collection is the collection every fixture record belongs to.
const Collection = "albums"

// Album builds an album record. Data carries no id; stores write it in.
func Album(id, name, artist string, year int) ir.Record {
	return AlbumAt(0, id, name, artist, year)
}

// AlbumAt is Album with an explicit seq, for writing to a store directly.
func AlbumAt(seq int64, id, name, artist string, year int) ir.Record {
	data, err := json.Marshal(map[string]any{"name": name, "artist": artist, "year": year})
	if err != nil {
		panic(err)
	}
	return ir.Record{Collection: Collection, ID: id, Data: data, Seq: seq}
}

// Albums returns the standard four-album catalogue with seq 1 through 4.
//
//	a1  Purple Rain         Prince           1984
//	a2  Sign o' the Times   Prince           1987
//	a3  Thriller            Michael Jackson  1982
//	a4  Nevermind           Nirvana          1991
func Albums() []ir.Record {
	return []ir.Record{
		AlbumAt(1, "a1", "Purple Rain", "Prince", 1984),
		AlbumAt(2, "a2", "Sign o' the Times", "Prince", 1987),
		AlbumAt(3, "a3", "Thriller", "Michael Jackson", 1982),
		AlbumAt(4, "a4", "Nevermind", "Nirvana", 1991),
	}
}

// IDs returns the ids of records in order.
func IDs(records []ir.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
