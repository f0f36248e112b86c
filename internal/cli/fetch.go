package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/selq/internal/ir"
	"github.com/roach88/selq/internal/queryir"
	"github.com/roach88/selq/internal/selection"
)

// FetchOptions holds flags for the fetch command.
type FetchOptions struct {
	*RootOptions
	Bindings BindingOptions
}

// FetchResult is the fetch command's JSON output.
type FetchResult struct {
	Collection string      `json:"collection"`
	Canonical  string      `json:"canonical"`
	Records    []ir.Record `json:"records"`
	Count      int         `json:"count"`
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FetchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetch [collection] <query>",
		Short: "Run a query once and print the matching records",
		Long: `Run a selection against a collection and print the matching records in
selection order. The collection may be omitted when the config file
names a default collection.

Examples:
  selq fetch albums "artist = 'Prince' ORDER BY year"
  selq fetch albums "year >= {} AND year <= {}" --arg 1980 --arg 1990
  selq fetch albums "{artist} AND {>year}" --set artist=Prince --set year=1985 --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(opts, args, cmd)
		},
	}

	addBindingFlags(cmd, &opts.Bindings)

	return cmd
}

func runFetch(opts *FetchOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	collection, source, err := collectionAndQuery(opts.Config, args)
	if err != nil {
		return err
	}

	sel, err := compileSelection(formatter, opts.Config, source, opts.Bindings)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	eng, cleanup, err := openEngine(ctx, opts.Config)
	if err != nil {
		return err
	}
	defer cleanup()

	records, err := eng.Fetch(ctx, collection, sel)
	if err != nil {
		return reportError(formatter, ExitFailure, ErrCodeStore, "fetch failed", err, nil)
	}

	if opts.Format == "json" {
		if records == nil {
			records = []ir.Record{}
		}
		return formatter.Success(FetchResult{
			Collection: collection,
			Canonical:  sel.String(),
			Records:    records,
			Count:      len(records),
		})
	}

	formatter.VerboseLog("selection: %s", sel)
	writeRecordTable(cmd.OutOrStdout(), records)
	return nil
}

// collectionAndQuery splits [collection] <query>, falling back to the
// configured default collection.
func collectionAndQuery(cfg Config, args []string) (string, string, error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}
	if cfg.Collection == "" {
		return "", "", NewExitError(ExitCommandError, "no collection given and no default collection configured")
	}
	return cfg.Collection, args[0], nil
}

// compileSelection resolves bindings and compiles source, reporting
// failures through f.
func compileSelection(f *OutputFormatter, cfg Config, source string, b BindingOptions) (queryir.Selection, error) {
	mode, bindings, err := b.Resolve()
	if err != nil {
		return queryir.Selection{}, reportError(f, ExitCommandError, ErrCodeConfig, "invalid bindings", err, nil)
	}

	compiler, err := selection.NewCompiler(cfg.CacheSize)
	if err != nil {
		return queryir.Selection{}, fmt.Errorf("create compiler: %w", err)
	}
	sel, err := compiler.Compile(source, mode, bindings)
	if err != nil {
		return queryir.Selection{}, reportQueryError(f, err)
	}

	for _, w := range queryir.Validate(sel).Warnings {
		f.VerboseLog("warning: %s", w)
	}
	return sel, nil
}
