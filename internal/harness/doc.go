// Package harness runs YAML query scenarios against a record backend.
//
// A scenario seeds a collection, compiles a list of queries (in any of
// the three template modes), checks the ordered ids each one returns,
// and optionally drives live queries through a sequence of writes:
//
//	name: albums
//	description: "Album catalogue queries"
//	collection: albums
//	records:
//	  - { id: a1, name: Purple Rain, artist: Prince, year: 1984 }
//	queries:
//	  - name: sugar
//	    mode: structural
//	    query: "{artist} AND {>year}"
//	    set: { artist: Prince, year: 1983 }
//	    expect: [a1]
//	  - name: broken
//	    query: "year >"
//	    error: parse
//	live:
//	  - name: watch_prince
//	    query: "artist = 'Prince'"
//	    steps:
//	      - put: { id: a6, artist: Prince, year: 1982 }
//	        expect: ["add a6"]
//	      - delete: a1
//	        expect: ["remove a1"]
//
// Every backend must produce the same Report for the same scenario, so
// one golden file (testdata/golden/<name>.golden) covers all of them.
package harness
