package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/selq/internal/engine"
)

// Report renders a result as stable text for golden comparison. Error
// messages are reduced to their class so wording changes do not churn
// golden files.
func Report(r *Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "scenario: %s\n", r.Scenario)
	fmt.Fprintf(&b, "records: %d\n", r.Records)

	for _, q := range r.Queries {
		fmt.Fprintf(&b, "\nquery %s\n", q.Name)
		fmt.Fprintf(&b, "  source: %s\n", q.Source)
		if q.ErrorClass != "" {
			fmt.Fprintf(&b, "  error: %s\n", q.ErrorClass)
			continue
		}
		fmt.Fprintf(&b, "  canonical: %s\n", q.Canonical)
		fmt.Fprintf(&b, "  ids: %s\n", joinIDs(q.IDs))
	}

	for _, l := range r.Live {
		fmt.Fprintf(&b, "\nlive %s\n", l.Name)
		fmt.Fprintf(&b, "  canonical: %s\n", l.Canonical)
		fmt.Fprintf(&b, "  initial: %s\n", joinIDs(l.Initial))
		for i, step := range l.Steps {
			fmt.Fprintf(&b, "  step %d: %s\n", i+1, joinChanges(step))
		}
		fmt.Fprintf(&b, "  final: %s\n", joinIDs(l.Final))
	}

	if r.Pass {
		b.WriteString("\nresult: pass\n")
	} else {
		b.WriteString("\nresult: fail\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}
	return b.String()
}

func joinIDs(ids []string) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(ids, " ")
}

func joinChanges(changes []string) string {
	if len(changes) == 0 {
		return "(none)"
	}
	return strings.Join(changes, ", ")
}

// RunWithGolden runs scenario against backend and compares its Report
// with testdata/golden/<scenario.Name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, backend engine.Backend) *Result {
	t.Helper()

	h, err := New(backend)
	if err != nil {
		t.Fatalf("create harness: %v", err)
	}
	result, err := h.Run(context.Background(), scenario)
	if err != nil {
		t.Fatalf("run scenario %s: %v", scenario.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, []byte(Report(result)))
	return result
}
