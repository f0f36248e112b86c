package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/selq/internal/ir"
	"github.com/roach88/selq/internal/queryir"
)

// Backend is a record store. It is implemented by store.Store (SQLite),
// kvstore.Store (Badger) and pgstore.Store (PostgreSQL).
type Backend interface {
	Put(ctx context.Context, rec ir.Record) (ir.Record, error)
	Get(ctx context.Context, collection, id string) (ir.Record, bool, error)
	// Delete removes a record. seq is the delete's clock value; a backend
	// that removed a record keeps it as its MaxSeq high-water mark.
	Delete(ctx context.Context, collection, id string, seq int64) (bool, error)
	Fetch(ctx context.Context, collection string, sel queryir.Selection) ([]ir.Record, error)
	MaxSeq(ctx context.Context) (int64, error)
	Collections(ctx context.Context) ([]string, error)
	Close() error
}

// DefaultChangeBuffer is the capacity of each live query's change channel.
const DefaultChangeBuffer = 16

// Engine serves one-shot fetches and live queries over a Backend.
//
// Writes go through Put and Delete: the record is stamped with the next
// Clock value, written to the backend, and the resulting mutation is
// queued. The Run loop folds queued mutations into every live query on
// the affected collection, one mutation at a time, and delivers the
// resulting change sets.
//
// Thread-safety model:
//   - Put, Delete, Get, Fetch, Subscribe: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Engine struct {
	backend Backend
	clock   *Clock
	queue   *mutationQueue
	ids     IDGenerator
	logger  *slog.Logger
	buffer  int

	// writeMu keeps clock order and backend write order identical, so
	// the queue sees mutations in seq order. Subscribe holds it too, so a
	// snapshot and the clock value it reflects are read together.
	writeMu sync.Mutex

	// mu guards subs. Run holds it while applying a mutation, which keeps
	// a subscription's initial fetch and its first applied mutation from
	// interleaving.
	mu   sync.Mutex
	subs map[string]*LiveQuery
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock sets the engine's clock. New still advances it past the
// backend's highest stored seq.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the generator for live-query ids and missing
// record ids. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithChangeBuffer sets the capacity of each live query's change channel.
func WithChangeBuffer(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.buffer = n
		}
	}
}

// New creates an Engine over backend. The clock resumes after the
// backend's MaxSeq, which covers puts and deletes, so no seq is issued
// twice across restarts.
func New(ctx context.Context, backend Backend, opts ...Option) (*Engine, error) {
	e := &Engine{
		backend: backend,
		queue:   newMutationQueue(),
		ids:     UUIDv7Generator{},
		logger:  slog.Default(),
		buffer:  DefaultChangeBuffer,
		subs:    make(map[string]*LiveQuery),
	}
	for _, opt := range opts {
		opt(e)
	}

	seq, err := backend.MaxSeq(ctx)
	if err != nil {
		return nil, backendError("restore clock", "", err)
	}
	if e.clock == nil {
		e.clock = NewClockAt(seq)
	} else {
		e.clock.AdvanceTo(seq)
	}
	return e, nil
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Put writes rec and queues the change for live queries. A record without
// an id gets one from the engine's IDGenerator. The stored record
// (canonical data, assigned seq) is returned.
func (e *Engine) Put(ctx context.Context, rec ir.Record) (ir.Record, error) {
	if e.queue.Closed() {
		return ir.Record{}, stoppedError()
	}
	if rec.ID == "" {
		rec.ID = e.ids.Generate()
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	rec.Seq = e.clock.Next()
	stored, err := e.backend.Put(ctx, rec)
	if err != nil {
		e.logger.Error("put failed", "collection", rec.Collection, "id", rec.ID, "error", err)
		return ir.Record{}, backendError("put", rec.Collection, err)
	}

	if !e.queue.Enqueue(ir.Mutation{Kind: ir.ChangePut, Record: stored}) {
		e.logger.Warn("engine stopped before change was queued", "collection", stored.Collection, "id", stored.ID)
	}
	return stored, nil
}

// Delete removes a record and queues the change for live queries.
// found is false when the record did not exist; nothing is queued then.
func (e *Engine) Delete(ctx context.Context, collection, id string) (found bool, err error) {
	if e.queue.Closed() {
		return false, stoppedError()
	}
	id = norm.NFC.String(id)

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	// The clock only moves when a record was removed, so a missed delete
	// leaves no gap.
	seq := e.clock.Current() + 1
	found, err = e.backend.Delete(ctx, collection, id, seq)
	if err != nil {
		e.logger.Error("delete failed", "collection", collection, "id", id, "error", err)
		return false, backendError("delete", collection, err)
	}
	if !found {
		return false, nil
	}

	e.clock.AdvanceTo(seq)
	tomb := ir.Record{Collection: collection, ID: id, Seq: seq}
	if !e.queue.Enqueue(ir.Mutation{Kind: ir.ChangeDelete, Record: tomb}) {
		e.logger.Warn("engine stopped before change was queued", "collection", collection, "id", id)
	}
	return true, nil
}

// Get reads a single record.
func (e *Engine) Get(ctx context.Context, collection, id string) (ir.Record, bool, error) {
	rec, found, err := e.backend.Get(ctx, collection, norm.NFC.String(id))
	if err != nil {
		return ir.Record{}, false, backendError("get", collection, err)
	}
	return rec, found, nil
}

// Fetch returns the records of collection matching sel, in selection
// order with ties broken by id.
func (e *Engine) Fetch(ctx context.Context, collection string, sel queryir.Selection) ([]ir.Record, error) {
	records, err := e.backend.Fetch(ctx, collection, sel)
	if err != nil {
		return nil, backendError("fetch", collection, err)
	}
	return records, nil
}

// Collections lists the collections holding at least one record.
func (e *Engine) Collections(ctx context.Context) ([]string, error) {
	names, err := e.backend.Collections(ctx)
	if err != nil {
		return nil, backendError("list collections", "", err)
	}
	return names, nil
}

// Subscribe starts a live query. The returned LiveQuery holds the
// current result set and receives a ChangeSet for every later write that
// changes it. Changes are delivered only while Run is running.
//
// The snapshot already reflects every write made before Subscribe, even
// ones still queued; the live query skips those when they are applied.
func (e *Engine) Subscribe(ctx context.Context, collection string, sel queryir.Selection) (*LiveQuery, error) {
	if e.queue.Closed() {
		return nil, stoppedError()
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	since := e.clock.Current()
	records, err := e.backend.Fetch(ctx, collection, sel)
	if err != nil {
		return nil, backendError("subscribe", collection, err)
	}

	lq := newLiveQuery(e, e.ids.Generate(), collection, sel.Clone(), records, since, e.buffer)
	e.subs[lq.ID] = lq

	e.logger.Debug("live query started",
		"subscription", lq.ID,
		"collection", collection,
		"selection", sel.String(),
		"results", len(records),
		"since", since,
	)
	return lq, nil
}

// Unsubscribe closes the live query with the given id.
func (e *Engine) Unsubscribe(id string) error {
	e.mu.Lock()
	lq, ok := e.subs[id]
	e.mu.Unlock()

	if !ok {
		return &RuntimeError{
			Code:           ErrCodeSubscriptionClosed,
			Message:        "no open live query",
			SubscriptionID: id,
		}
	}
	return lq.Close()
}

// Subscriptions returns the number of open live queries.
func (e *Engine) Subscriptions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// QueueLen returns the number of writes not yet applied to live queries.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Run applies queued mutations to live queries until ctx is cancelled or
// Stop is called. Mutations queued before Stop are still applied. On
// return every live query is closed.
//
// Must be called from exactly one goroutine.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "seq", e.clock.Current())
	defer e.closeAll()

	for {
		if m, ok := e.queue.TryDequeue(); ok {
			e.apply(ctx, m)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed with the queue. A stale signal
			// on an open queue just loops back to TryDequeue.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Drain applies every queued mutation on the calling goroutine and
// returns how many were applied. It is for callers that do not run the
// loop (tests, one-shot tools) and must not be called while Run is
// running.
func (e *Engine) Drain(ctx context.Context) int {
	n := 0
	for {
		m, ok := e.queue.TryDequeue()
		if !ok {
			return n
		}
		e.apply(ctx, m)
		n++
	}
}

// Stop stops accepting writes and subscriptions. Run returns once the
// queue is drained.
func (e *Engine) Stop() {
	e.queue.Close()
}

// apply folds one mutation into every live query on its collection, in
// subscription id order.
func (e *Engine) apply(ctx context.Context, m ir.Mutation) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.subs))
	for id, lq := range e.subs {
		if lq.Collection == m.Record.Collection {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		lq := e.subs[id]
		cs := lq.apply(m)
		if len(cs.Changes) == 0 {
			continue
		}

		e.logger.Debug("live query changed",
			"subscription", id,
			"seq", cs.Seq,
			"kind", cs.Changes[0].Kind.String(),
			"id", m.Record.ID,
		)

		select {
		case lq.changes <- cs:
		case <-lq.done:
		case <-ctx.Done():
			return
		}
	}
}

// remove detaches lq and closes its change channel. Only the goroutine
// that finds lq registered closes the channel.
func (e *Engine) remove(lq *LiveQuery) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.subs[lq.ID] != lq {
		return
	}
	delete(e.subs, lq.ID)
	close(lq.changes)
	e.logger.Debug("live query closed", "subscription", lq.ID)
}

func (e *Engine) closeAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, lq := range e.subs {
		lq.markDone()
		delete(e.subs, id)
		close(lq.changes)
	}
}

func (e *Engine) String() string {
	return fmt.Sprintf("engine(seq=%d, subscriptions=%d)", e.clock.Current(), e.Subscriptions())
}
