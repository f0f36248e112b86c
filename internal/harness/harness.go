package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/selq/internal/engine"
	"github.com/roach88/selq/internal/ir"
	"github.com/roach88/selq/internal/selection"
)

// Harness runs scenarios against one backend.
type Harness struct {
	backend  engine.Backend
	compiler *selection.Compiler
	logger   *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to the engine. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// WithCompiler shares a selection compiler between harnesses.
func WithCompiler(c *selection.Compiler) Option {
	return func(h *Harness) {
		h.compiler = c
	}
}

// New creates a Harness over backend. The backend should start empty;
// the harness never closes it.
func New(backend engine.Backend, opts ...Option) (*Harness, error) {
	compiler, err := selection.NewCompiler(selection.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	h := &Harness{
		backend:  backend,
		compiler: compiler,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Run executes a scenario: seed the records, run every query, then drive
// every live case. Mismatches are collected in the Result; an error is
// returned only when the scenario could not be executed at all.
//
// Live queries are driven with Engine.Drain rather than a background
// loop, so the changes each step produces are exact and repeatable.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	eng, err := engine.New(ctx, h.backend, engine.WithLogger(h.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	defer eng.Stop()

	result := NewResult(scenario.Name)

	for i, doc := range scenario.Records {
		rec, err := toRecord(scenario.Collection, doc)
		if err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
		if _, err := eng.Put(ctx, rec); err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
	}
	eng.Drain(ctx)
	result.Records = len(scenario.Records)

	for _, qc := range scenario.Queries {
		outcome, err := h.runQuery(ctx, eng, scenario.Collection, qc)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", qc.Name, err)
		}
		result.Queries = append(result.Queries, outcome)
		for _, msg := range checkQuery(qc, outcome) {
			result.AddError(msg)
		}
	}

	for _, lc := range scenario.Live {
		outcome, err := h.runLive(ctx, eng, scenario.Collection, lc)
		if err != nil {
			return nil, fmt.Errorf("live %s: %w", lc.Name, err)
		}
		result.Live = append(result.Live, outcome)
		for _, msg := range checkLive(lc, outcome) {
			result.AddError(msg)
		}
	}

	return result, nil
}

// inputs resolves a case's mode and bindings. Failures here are scenario
// mistakes, not query errors.
func inputs(mode string, args []any, set map[string]any) (selection.Mode, selection.Bindings, error) {
	m, err := parseMode(mode)
	if err != nil {
		return 0, selection.Bindings{}, err
	}
	b, err := bindings(args, set)
	if err != nil {
		return 0, selection.Bindings{}, err
	}
	return m, b, nil
}

// runQuery compiles and fetches one query case. Compile failures are part
// of the outcome; backend failures abort the run.
func (h *Harness) runQuery(ctx context.Context, eng *engine.Engine, collection string, qc QueryCase) (QueryOutcome, error) {
	outcome := QueryOutcome{Name: qc.Name, Source: qc.Query, IDs: []string{}}

	mode, b, err := inputs(qc.Mode, qc.Args, qc.Set)
	if err != nil {
		return outcome, err
	}
	sel, err := h.compiler.Compile(qc.Query, mode, b)
	if err != nil {
		outcome.ErrorClass = errorClass(err)
		outcome.Error = err.Error()
		return outcome, nil
	}

	outcome.Canonical = sel.String()
	records, err := eng.Fetch(ctx, collection, sel)
	if err != nil {
		return outcome, err
	}
	outcome.IDs = recordIDs(records)
	return outcome, nil
}

// runLive subscribes, applies each step, and records the changes it
// produced.
func (h *Harness) runLive(ctx context.Context, eng *engine.Engine, collection string, lc LiveCase) (LiveOutcome, error) {
	outcome := LiveOutcome{Name: lc.Name, Steps: [][]string{}}

	mode, b, err := inputs(lc.Mode, lc.Args, lc.Set)
	if err != nil {
		return outcome, err
	}
	sel, err := h.compiler.Compile(lc.Query, mode, b)
	if err != nil {
		return outcome, err
	}
	outcome.Canonical = sel.String()

	lq, err := eng.Subscribe(ctx, collection, sel)
	if err != nil {
		return outcome, err
	}
	defer lq.Close()
	outcome.Initial = recordIDs(lq.Results())

	for i, step := range lc.Steps {
		if step.Put != nil {
			rec, err := toRecord(collection, step.Put)
			if err != nil {
				return outcome, fmt.Errorf("step %d: %w", i+1, err)
			}
			if _, err := eng.Put(ctx, rec); err != nil {
				return outcome, fmt.Errorf("step %d: %w", i+1, err)
			}
		} else {
			if _, err := eng.Delete(ctx, collection, step.Delete); err != nil {
				return outcome, fmt.Errorf("step %d: %w", i+1, err)
			}
		}
		eng.Drain(ctx)
		outcome.Steps = append(outcome.Steps, pendingChanges(lq))
	}

	outcome.Final = recordIDs(lq.Results())
	return outcome, nil
}

// pendingChanges collects every change set already delivered to lq.
func pendingChanges(lq *engine.LiveQuery) []string {
	changes := []string{}
	for {
		select {
		case cs := <-lq.Changes():
			for _, c := range cs.Changes {
				changes = append(changes, c.Kind.String()+" "+c.Record.ID)
			}
		default:
			return changes
		}
	}
}

func errorClass(err error) string {
	switch {
	case selection.IsLexError(err):
		return ErrorLex
	case selection.IsParseError(err):
		return ErrorParse
	case selection.IsInterpolationError(err):
		return ErrorInterpolation
	default:
		return "other"
	}
}

func recordIDs(records []ir.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
