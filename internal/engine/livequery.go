package engine

import (
	"bytes"
	"sync"

	"github.com/roach88/selq/internal/ir"
	"github.com/roach88/selq/internal/queryeval"
	"github.com/roach88/selq/internal/queryir"
)

// ChangeKind says how a record's membership in a result set changed.
type ChangeKind int

const (
	// ChangeAdd: the record entered the result set.
	ChangeAdd ChangeKind = iota + 1
	// ChangeUpdate: the record stayed in the result set with new data.
	ChangeUpdate
	// ChangeRemove: the record left the result set or was deleted.
	ChangeRemove
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdd:
		return "add"
	case ChangeUpdate:
		return "update"
	case ChangeRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Change is one record's transition. For ChangeRemove, Record is the last
// version the live query held.
type Change struct {
	Kind   ChangeKind
	Record ir.Record
}

// ChangeSet is the effect of a single write on a live query.
type ChangeSet struct {
	Seq     int64
	Changes []Change
}

// LiveQuery is a selection kept current against writes made through the
// Engine.
type LiveQuery struct {
	ID         string
	Collection string
	Selection  queryir.Selection

	engine  *Engine
	since   int64 // Mutations at or below this seq are already in the snapshot
	changes chan ChangeSet
	done    chan struct{}
	once    sync.Once

	mu      sync.Mutex
	index   map[string]ir.Record
	results []ir.Record
}

func newLiveQuery(e *Engine, id, collection string, sel queryir.Selection, initial []ir.Record, since int64, buffer int) *LiveQuery {
	lq := &LiveQuery{
		ID:         id,
		Collection: collection,
		Selection:  sel,
		engine:     e,
		since:      since,
		changes:    make(chan ChangeSet, buffer),
		done:       make(chan struct{}),
		index:      make(map[string]ir.Record, len(initial)),
	}
	for _, rec := range initial {
		lq.index[rec.ID] = rec
	}
	lq.resort()
	return lq
}

// Results returns a copy of the current result set in selection order.
func (lq *LiveQuery) Results() []ir.Record {
	lq.mu.Lock()
	defer lq.mu.Unlock()

	out := make([]ir.Record, len(lq.results))
	copy(out, lq.results)
	return out
}

// Changes returns the channel of change sets. It is closed when the live
// query is closed or the engine stops.
func (lq *LiveQuery) Changes() <-chan ChangeSet {
	return lq.changes
}

// Done is closed when the live query is closed.
func (lq *LiveQuery) Done() <-chan struct{} {
	return lq.done
}

// Close stops the live query. It is safe to call more than once.
func (lq *LiveQuery) Close() error {
	lq.markDone()
	lq.engine.remove(lq)
	return nil
}

func (lq *LiveQuery) markDone() {
	lq.once.Do(func() { close(lq.done) })
}

// apply folds m into the result set and reports what changed. A put
// whose data equals the held version is not a change, and neither is a
// mutation the initial snapshot already contains.
func (lq *LiveQuery) apply(m ir.Mutation) ChangeSet {
	lq.mu.Lock()
	defer lq.mu.Unlock()

	cs := ChangeSet{Seq: m.Record.Seq}
	if m.Record.Seq <= lq.since {
		return cs
	}
	id := m.Record.ID
	prev, had := lq.index[id]

	switch m.Kind {
	case ir.ChangeDelete:
		if !had {
			return cs
		}
		delete(lq.index, id)
		cs.Changes = append(cs.Changes, Change{Kind: ChangeRemove, Record: prev})

	case ir.ChangePut:
		matched := queryeval.Match(lq.Selection.Predicate, m.Record.Data)
		switch {
		case matched && !had:
			lq.index[id] = m.Record
			cs.Changes = append(cs.Changes, Change{Kind: ChangeAdd, Record: m.Record})
		case matched && had:
			if bytes.Equal(prev.Data, m.Record.Data) {
				return cs
			}
			lq.index[id] = m.Record
			cs.Changes = append(cs.Changes, Change{Kind: ChangeUpdate, Record: m.Record})
		case !matched && had:
			delete(lq.index, id)
			cs.Changes = append(cs.Changes, Change{Kind: ChangeRemove, Record: prev})
		default:
			return cs
		}
	}

	lq.resort()
	return cs
}

// resort rebuilds the ordered result slice from the index. Called with
// mu held.
func (lq *LiveQuery) resort() {
	results := make([]ir.Record, 0, len(lq.index))
	for _, rec := range lq.index {
		results = append(results, rec)
	}
	queryeval.Sort(lq.Selection.Order, results)
	lq.results = results
}
