package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/selq/internal/ir"
	"github.com/roach88/selq/internal/kvstore"
	"github.com/roach88/selq/internal/testutil"
)

func setupBackend(t *testing.T) *kvstore.Store {
	t.Helper()
	s, err := kvstore.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// startEngine runs the engine loop until the test ends.
func startEngine(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func nextChange(t *testing.T, lq *LiveQuery) ChangeSet {
	t.Helper()
	select {
	case cs, ok := <-lq.Changes():
		require.True(t, ok, "change channel closed")
		return cs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change set")
		return ChangeSet{}
	}
}

func assertNoChange(t *testing.T, lq *LiveQuery) {
	t.Helper()
	select {
	case cs := <-lq.Changes():
		t.Fatalf("unexpected change set: %+v", cs)
	case <-time.After(50 * time.Millisecond):
	}
}

func seedEngine(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()
	for _, rec := range testutil.Albums()[:3] {
		_, err := e.Put(ctx, rec)
		require.NoError(t, err)
	}
}

func TestNew_RestoresClockFromBackend(t *testing.T) {
	backend := setupBackend(t)
	ctx := context.Background()

	first, err := New(ctx, backend)
	require.NoError(t, err)
	seedEngine(t, first)
	assert.Equal(t, int64(3), first.Clock().Current())

	second, err := New(ctx, backend)
	require.NoError(t, err)
	assert.Equal(t, int64(3), second.Clock().Current())

	rec, err := second.Put(ctx, testutil.Album("a4", "Nevermind", "Nirvana", 1991))
	require.NoError(t, err)
	assert.Equal(t, int64(4), rec.Seq)
}

func TestNew_AdvancesSuppliedClock(t *testing.T) {
	backend := setupBackend(t)
	ctx := context.Background()

	first, err := New(ctx, backend)
	require.NoError(t, err)
	seedEngine(t, first)

	behind := NewClockAt(1)
	second, err := New(ctx, backend, WithClock(behind))
	require.NoError(t, err)
	assert.Same(t, behind, second.Clock())
	assert.Equal(t, int64(3), behind.Current())

	ahead := NewClockAt(100)
	third, err := New(ctx, backend, WithClock(ahead))
	require.NoError(t, err)
	assert.Equal(t, int64(100), third.Clock().Current())
}

func TestPut_AssignsIDAndSeq(t *testing.T) {
	e, err := New(context.Background(), setupBackend(t), WithIDGenerator(NewFixedGenerator("gen-1")))
	require.NoError(t, err)

	rec, err := e.Put(context.Background(), ir.Record{Collection: "albums", Data: []byte(`{"name":"Untitled"}`)})
	require.NoError(t, err)
	assert.Equal(t, "gen-1", rec.ID)
	assert.Equal(t, int64(1), rec.Seq)
	assert.Equal(t, `{"id":"gen-1","name":"Untitled"}`, string(rec.Data))
	assert.Equal(t, 1, e.QueueLen())
}

func TestPut_BackendFailure(t *testing.T) {
	e, err := New(context.Background(), setupBackend(t))
	require.NoError(t, err)

	_, err = e.Put(context.Background(), ir.Record{Collection: "albums", ID: "x", Data: []byte(`[1,2]`)})
	require.Error(t, err)
	assert.True(t, IsBackendFailure(err))
	assert.Equal(t, 0, e.QueueLen(), "failed writes are not queued")
}

func TestFetch(t *testing.T) {
	e, err := New(context.Background(), setupBackend(t))
	require.NoError(t, err)
	seedEngine(t, e)

	records, err := e.Fetch(context.Background(), "albums", testutil.MustParse(t, "artist = 'Prince' ORDER BY year DESC"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "a1"}, testutil.IDs(records))
}

func TestSubscribe_InitialResults(t *testing.T) {
	e, err := New(context.Background(), setupBackend(t), WithIDGenerator(NewFixedGenerator("sub-1")))
	require.NoError(t, err)
	seedEngine(t, e)

	lq, err := e.Subscribe(context.Background(), "albums", testutil.MustParse(t, "year > 1983 ORDER BY year"))
	require.NoError(t, err)
	defer lq.Close()

	assert.Equal(t, "sub-1", lq.ID)
	assert.Equal(t, []string{"a1", "a2"}, testutil.IDs(lq.Results()))
	assert.Equal(t, 1, e.Subscriptions())
}

func TestLiveQuery_AddUpdateRemove(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, setupBackend(t))
	require.NoError(t, err)
	seedEngine(t, e)

	lq, err := e.Subscribe(ctx, "albums", testutil.MustParse(t, "artist = 'Prince' ORDER BY year DESC"))
	require.NoError(t, err)
	defer lq.Close()
	startEngine(t, e)

	// The seeded writes were queued before the subscription existed and
	// are already part of its initial results.
	assertNoChange(t, lq)

	_, err = e.Put(ctx, testutil.Album("a4", "1999", "Prince", 1982))
	require.NoError(t, err)
	cs := nextChange(t, lq)
	require.Len(t, cs.Changes, 1)
	assert.Equal(t, ChangeAdd, cs.Changes[0].Kind)
	assert.Equal(t, "a4", cs.Changes[0].Record.ID)
	assert.Equal(t, int64(4), cs.Seq)
	assert.Equal(t, []string{"a2", "a1", "a4"}, testutil.IDs(lq.Results()))

	_, err = e.Put(ctx, testutil.Album("a1", "Purple Rain (Deluxe)", "Prince", 1984))
	require.NoError(t, err)
	cs = nextChange(t, lq)
	require.Len(t, cs.Changes, 1)
	assert.Equal(t, ChangeUpdate, cs.Changes[0].Kind)
	assert.Contains(t, string(cs.Changes[0].Record.Data), "Deluxe")

	_, err = e.Put(ctx, testutil.Album("a2", "Sign o' the Times", "Prince & The Revolution", 1987))
	require.NoError(t, err)
	cs = nextChange(t, lq)
	require.Len(t, cs.Changes, 1)
	assert.Equal(t, ChangeRemove, cs.Changes[0].Kind)
	assert.Equal(t, "a2", cs.Changes[0].Record.ID)
	assert.Equal(t, []string{"a1", "a4"}, testutil.IDs(lq.Results()))

	found, err := e.Delete(ctx, "albums", "a4")
	require.NoError(t, err)
	require.True(t, found)
	cs = nextChange(t, lq)
	require.Len(t, cs.Changes, 1)
	assert.Equal(t, ChangeRemove, cs.Changes[0].Kind)
	assert.Equal(t, []string{"a1"}, testutil.IDs(lq.Results()))
}

func TestSubscribe_SkipsQueuedWritesInSnapshot(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, setupBackend(t))
	require.NoError(t, err)

	// Both writes are still queued when the snapshot is taken.
	_, err = e.Put(ctx, ir.Record{Collection: "albums", ID: "a1", Data: []byte(`{"year":1990}`)})
	require.NoError(t, err)
	_, err = e.Put(ctx, ir.Record{Collection: "albums", ID: "a1", Data: []byte(`{"year":1970}`)})
	require.NoError(t, err)

	lq, err := e.Subscribe(ctx, "albums", testutil.MustParse(t, "year > 1980"))
	require.NoError(t, err)
	defer lq.Close()
	assert.Empty(t, lq.Results())

	assert.Equal(t, 2, e.Drain(ctx))
	assertNoChange(t, lq)
	assert.Empty(t, lq.Results())

	_, err = e.Put(ctx, ir.Record{Collection: "albums", ID: "a1", Data: []byte(`{"year":1995}`)})
	require.NoError(t, err)
	assert.Equal(t, 1, e.Drain(ctx))

	cs := nextChange(t, lq)
	assert.Equal(t, int64(3), cs.Seq)
	require.Len(t, cs.Changes, 1)
	assert.Equal(t, ChangeAdd, cs.Changes[0].Kind)
	assert.Equal(t, []string{"a1"}, testutil.IDs(lq.Results()))
}

func TestDelete_SeqSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	backend := setupBackend(t)

	first, err := New(ctx, backend)
	require.NoError(t, err)
	for _, id := range []string{"a", "b"} {
		_, err := first.Put(ctx, ir.Record{Collection: "albums", ID: id, Data: []byte(`{}`)})
		require.NoError(t, err)
	}

	found, err := first.Delete(ctx, "albums", "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int64(2), first.Clock().Current(), "a delete that removed nothing takes no seq")

	found, err = first.Delete(ctx, "albums", "b")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(3), first.Clock().Current())

	second, err := New(ctx, backend)
	require.NoError(t, err)
	assert.Equal(t, int64(3), second.Clock().Current())

	rec, err := second.Put(ctx, ir.Record{Collection: "albums", ID: "c", Data: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, int64(4), rec.Seq)
}

func TestLiveQuery_IgnoresUnrelatedWrites(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, setupBackend(t))
	require.NoError(t, err)
	seedEngine(t, e)

	lq, err := e.Subscribe(ctx, "albums", testutil.MustParse(t, "artist = 'Prince'"))
	require.NoError(t, err)
	defer lq.Close()
	startEngine(t, e)

	// Not matching, other collection, and an identical rewrite.
	_, err = e.Put(ctx, testutil.Album("a9", "Bad", "Michael Jackson", 1987))
	require.NoError(t, err)
	_, err = e.Put(ctx, ir.Record{Collection: "artists", ID: "prince", Data: []byte(`{"artist":"Prince"}`)})
	require.NoError(t, err)
	_, err = e.Put(ctx, testutil.Album("a1", "Purple Rain", "Prince", 1984))
	require.NoError(t, err)
	found, err := e.Delete(ctx, "albums", "missing")
	require.NoError(t, err)
	assert.False(t, found)

	assertNoChange(t, lq)
}

func TestLiveQuery_ChangesArriveInSeqOrder(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, setupBackend(t))
	require.NoError(t, err)

	lq, err := e.Subscribe(ctx, "albums", testutil.MustParse(t, "true"))
	require.NoError(t, err)
	defer lq.Close()
	startEngine(t, e)

	seedEngine(t, e)

	var seqs []int64
	for i := 0; i < 3; i++ {
		seqs = append(seqs, nextChange(t, lq).Seq)
	}
	assert.Equal(t, []int64{1, 2, 3}, seqs)
	assert.Equal(t, []string{"a1", "a2", "a3"}, testutil.IDs(lq.Results()))
}

func TestLiveQuery_Close(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, setupBackend(t))
	require.NoError(t, err)
	startEngine(t, e)

	lq, err := e.Subscribe(ctx, "albums", testutil.MustParse(t, "true"))
	require.NoError(t, err)

	require.NoError(t, lq.Close())
	require.NoError(t, lq.Close(), "close is idempotent")

	_, open := <-lq.Changes()
	assert.False(t, open, "change channel should be closed")
	assert.Equal(t, 0, e.Subscriptions())

	err = e.Unsubscribe(lq.ID)
	require.Error(t, err)
	assert.True(t, IsSubscriptionClosed(err))

	// Writes after close must not block the loop.
	_, err = e.Put(ctx, testutil.Album("a1", "Purple Rain", "Prince", 1984))
	require.NoError(t, err)
}

func TestStop(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, setupBackend(t))
	require.NoError(t, err)

	lq, err := e.Subscribe(ctx, "albums", testutil.MustParse(t, "true"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	e.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	_, open := <-lq.Changes()
	assert.False(t, open, "live queries close when the engine stops")

	_, err = e.Put(ctx, testutil.Album("a1", "Purple Rain", "Prince", 1984))
	assert.True(t, IsStopped(err))
	_, err = e.Subscribe(ctx, "albums", testutil.MustParse(t, "true"))
	assert.True(t, IsStopped(err))
}

func TestRun_ContextCancel(t *testing.T) {
	e, err := New(context.Background(), setupBackend(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := context.Background()
	e, err := New(ctx, setupBackend(t), WithLogger(logger), WithIDGenerator(NewFixedGenerator("sub-1")))
	require.NoError(t, err)

	lq, err := e.Subscribe(ctx, "albums", testutil.MustParse(t, "year > 1985"))
	require.NoError(t, err)
	require.NoError(t, lq.Close())

	out := buf.String()
	assert.Contains(t, out, "live query started")
	assert.Contains(t, out, "subscription=sub-1")
	assert.Contains(t, out, "live query closed")
}

func TestRuntimeError(t *testing.T) {
	cause := errors.New("disk full")
	err := backendError("put", "albums", cause)

	assert.Equal(t, "BACKEND_FAILURE: put failed (collection=albums): disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsBackendFailure(err))
	assert.False(t, IsStopped(err))
}

func TestDrain(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, setupBackend(t))
	require.NoError(t, err)

	lq, err := e.Subscribe(ctx, "albums", testutil.MustParse(t, "year < 1985"))
	require.NoError(t, err)
	defer lq.Close()

	seedEngine(t, e)
	assert.Equal(t, 3, e.Drain(ctx))
	assert.Equal(t, 0, e.Drain(ctx))

	var added []string
	for i := 0; i < 2; i++ {
		cs := nextChange(t, lq)
		added = append(added, cs.Changes[0].Record.ID)
	}
	assert.Equal(t, []string{"a1", "a3"}, added)
	assert.Equal(t, []string{"a1", "a3"}, testutil.IDs(lq.Results()))
}
