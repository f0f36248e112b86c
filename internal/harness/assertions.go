package harness

import (
	"fmt"
	"slices"
	"strings"
)

// checkQuery compares a query outcome with its case and returns one
// message per mismatch.
func checkQuery(qc QueryCase, got QueryOutcome) []string {
	var errs []string

	switch {
	case qc.Error != "" && got.ErrorClass == "":
		errs = append(errs, fmt.Sprintf("query %s: expected %s error, got ids %s",
			qc.Name, qc.Error, formatIDs(got.IDs)))
	case qc.Error != "" && got.ErrorClass != qc.Error:
		errs = append(errs, fmt.Sprintf("query %s: expected %s error, got %s error: %s",
			qc.Name, qc.Error, got.ErrorClass, got.Error))
	case qc.Error == "" && got.ErrorClass != "":
		errs = append(errs, fmt.Sprintf("query %s: unexpected %s error: %s",
			qc.Name, got.ErrorClass, got.Error))
	case qc.Error == "" && !equalIDs(qc.Expect, got.IDs):
		errs = append(errs, fmt.Sprintf("query %s: expected ids %s, got %s",
			qc.Name, formatIDs(qc.Expect), formatIDs(got.IDs)))
	}
	return errs
}

// checkLive compares the changes each step produced with the expected
// ones. Order within a step matters.
func checkLive(lc LiveCase, got LiveOutcome) []string {
	var errs []string
	for i, step := range lc.Steps {
		if i >= len(got.Steps) {
			errs = append(errs, fmt.Sprintf("live %s step %d: not executed", lc.Name, i+1))
			continue
		}
		if !equalIDs(step.Expect, got.Steps[i]) {
			errs = append(errs, fmt.Sprintf("live %s step %d: expected changes %s, got %s",
				lc.Name, i+1, formatIDs(step.Expect), formatIDs(got.Steps[i])))
		}
	}
	return errs
}

// equalIDs treats nil and empty as equal.
func equalIDs(want, got []string) bool {
	if len(want) == 0 && len(got) == 0 {
		return true
	}
	return slices.Equal(want, got)
}

func formatIDs(ids []string) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return "[" + strings.Join(ids, ", ") + "]"
}
