package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/selq/internal/queryir"
	"github.com/roach88/selq/internal/querysql"
	"github.com/roach88/selq/internal/selection"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Bindings BindingOptions
	SQL      string // Dialect to render, empty for none
}

// CompileResult is the compile command's output.
type CompileResult struct {
	Mode      string   `json:"mode"`
	Expanded  string   `json:"expanded"`
	Canonical string   `json:"canonical"`
	Warnings  []string `json:"warnings"`
	SQL       string   `json:"sql,omitempty"`
	Params    []any    `json:"params,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <query>",
		Short: "Compile a query and print its canonical form",
		Long: `Compile a query or template into a selection and print its canonical,
fully parenthesized form together with lint warnings.

With --sql the selection is also rendered as a parameterized WHERE clause
for the given dialect.

Examples:
  selq compile "artist = 'Prince' AND year > 1985"
  selq compile "year >= {} AND year <= {}" --arg 1980 --arg 1990
  selq compile "{artist} AND {>year}" --set artist=Prince --set year=1985 --sql postgres`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	addBindingFlags(cmd, &opts.Bindings)
	cmd.Flags().StringVar(&opts.SQL, "sql", "", "also render SQL for a dialect (sqlite|postgres)")

	return cmd
}

func runCompile(opts *CompileOptions, source string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	mode, bindings, err := opts.Bindings.Resolve()
	if err != nil {
		return reportError(formatter, ExitCommandError, ErrCodeConfig, "invalid bindings", err, nil)
	}

	expanded, err := selection.Expand(source, mode, bindings)
	if err != nil {
		return reportQueryError(formatter, err)
	}
	sel, err := selection.Compile(source, mode, bindings)
	if err != nil {
		return reportQueryError(formatter, err)
	}

	result := CompileResult{
		Mode:      mode.String(),
		Expanded:  expanded,
		Canonical: sel.String(),
		Warnings:  queryir.Validate(sel).Warnings,
	}

	if opts.SQL != "" {
		dialect, err := querysql.ParseDialect(opts.SQL)
		if err != nil {
			return reportError(formatter, ExitCommandError, ErrCodeConfig, "invalid --sql", err, nil)
		}
		where, params, err := querysql.NewSQLCompiler(dialect).Where(sel.Predicate)
		if err != nil {
			return reportError(formatter, ExitFailure, ErrCodeQuery, "render SQL", err, nil)
		}
		result.SQL = where
		result.Params = params
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success(formatCompileText(result))
}

func formatCompileText(r CompileResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "mode:      %s\n", r.Mode)
	if r.Expanded != "" && r.Mode != selection.ModePlain.String() {
		fmt.Fprintf(&b, "expanded:  %s\n", r.Expanded)
	}
	fmt.Fprintf(&b, "canonical: %s", r.Canonical)
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "\nwarning:   %s", w)
	}
	if r.SQL != "" {
		fmt.Fprintf(&b, "\nsql:       %s", r.SQL)
		fmt.Fprintf(&b, "\nparams:    %v", r.Params)
	}
	return b.String()
}

// QueryErrorDetails is the details payload for compile failures.
type QueryErrorDetails struct {
	Mode     string `json:"mode"`
	Template string `json:"template"`
	Offset   int    `json:"offset"`
}

// reportQueryError maps a compile failure to its error code.
func reportQueryError(f *OutputFormatter, err error) error {
	code := ErrCodeQuery
	switch {
	case selection.IsLexError(err):
		code = ErrCodeLex
	case selection.IsParseError(err):
		code = ErrCodeParse
	case selection.IsInterpolationError(err):
		code = ErrCodeInterpolation
	}

	var details any
	var qe *selection.QueryError
	if errors.As(err, &qe) {
		details = QueryErrorDetails{Mode: qe.Mode.String(), Template: qe.Template, Offset: qe.Offset()}
	}
	return reportError(f, ExitFailure, code, "query failed to compile", err, details)
}
