package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/selq/internal/queryir"
	"github.com/roach88/selq/internal/selection"
)

// MustParse compiles a plain query or fails the test.
func MustParse(t testing.TB, q string) queryir.Selection {
	t.Helper()
	sel, err := selection.Parse(q)
	require.NoError(t, err, "parse %q", q)
	return sel
}
