package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/selq/internal/engine"
	"github.com/roach88/selq/internal/ir"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Bindings BindingOptions
	NoColor  bool
}

// WatchChange is one change line in JSON output.
type WatchChange struct {
	Kind   string          `json:"kind"`
	ID     string          `json:"id"`
	Record json.RawMessage `json:"record"`
}

// WatchEvent is one line of JSON output: the initial result set (Seq 0,
// every record as an add) or one change set.
type WatchEvent struct {
	Seq     int64         `json:"seq"`
	Initial bool          `json:"initial,omitempty"`
	Changes []WatchChange `json:"changes"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch [collection] <query>",
		Short: "Keep a query live and print every change to its results",
		Long: `Start a live query, print its current results, then print a change set
for every write that alters them.

Writes are read from stdin, one per line: a JSON object is stored as a
record and "delete <id>" removes one. The command ends at end of input or
on interrupt.

Change lines:
  + id  record entered the results
  ~ id  record changed and still matches
  - id  record left the results

Examples:
  selq watch albums "artist = 'Prince' ORDER BY year"
  tail -f writes.jsonl | selq watch albums "{>year}" --set year=1985 --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args, cmd)
		},
	}

	addBindingFlags(cmd, &opts.Bindings)
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", false, "disable colored change lines")

	return cmd
}

func runWatch(opts *WatchOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if opts.NoColor {
		color.NoColor = true
	}

	collection, source, err := collectionAndQuery(opts.Config, args)
	if err != nil {
		return err
	}
	sel, err := compileSelection(formatter, opts.Config, source, opts.Bindings)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	eng, cleanup, err := openEngine(ctx, opts.Config)
	if err != nil {
		return err
	}
	defer cleanup()

	lq, err := eng.Subscribe(ctx, collection, sel)
	if err != nil {
		return reportError(formatter, ExitFailure, ErrCodeStore, "subscribe failed", err, nil)
	}
	defer lq.Close()

	out := cmd.OutOrStdout()
	if err := writeInitial(out, opts.Format, collection, sel.String(), lq.Results()); err != nil {
		return err
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- eng.Run(ctx)
	}()

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- applyWrites(ctx, eng, collection, cmd.InOrStdin())
		eng.Stop()
	}()

	for cs := range lq.Changes() {
		if err := writeChangeSet(out, opts.Format, cs); err != nil {
			cancel()
			return err
		}
	}

	// Changes closes once Run returns; Run's own error is only ever the
	// context's.
	<-runErr
	select {
	case err := <-writeErr:
		if err != nil {
			return reportError(formatter, ExitFailure, ErrCodeInput, "write failed", err, nil)
		}
	default:
	}
	return nil
}

// applyWrites reads one write per line from r until EOF or ctx ends.
// Blank lines and lines starting with # are skipped.
func applyWrites(ctx context.Context, eng *engine.Engine, collection string, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		if ctx.Err() != nil {
			return nil
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		if id, ok := strings.CutPrefix(text, "delete "); ok {
			if _, err := eng.Delete(ctx, collection, strings.TrimSpace(id)); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			continue
		}

		records, err := decodeRecords(collection, []byte(text))
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		for _, rec := range records {
			if _, err := eng.Put(ctx, rec); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
		}
	}
	return scanner.Err()
}

func writeInitial(w io.Writer, format, collection, canonical string, records []ir.Record) error {
	if format == "json" {
		event := WatchEvent{Initial: true, Changes: make([]WatchChange, 0, len(records))}
		for _, rec := range records {
			event.Changes = append(event.Changes, WatchChange{Kind: engine.ChangeAdd.String(), ID: rec.ID, Record: rec.Data})
		}
		return json.NewEncoder(w).Encode(event)
	}

	fmt.Fprintf(w, "watching %s: %s\n\n", collection, canonical)
	writeRecordTable(w, records)
	fmt.Fprintln(w)
	return nil
}

func writeChangeSet(w io.Writer, format string, cs engine.ChangeSet) error {
	if format == "json" {
		event := WatchEvent{Seq: cs.Seq, Changes: make([]WatchChange, 0, len(cs.Changes))}
		for _, c := range cs.Changes {
			event.Changes = append(event.Changes, WatchChange{Kind: c.Kind.String(), ID: c.Record.ID, Record: c.Record.Data})
		}
		return json.NewEncoder(w).Encode(event)
	}

	for _, c := range cs.Changes {
		fmt.Fprintf(w, "%s  %s\n", changeMarker(c.Kind), changeLine(cs.Seq, c))
	}
	return nil
}

func changeMarker(kind engine.ChangeKind) string {
	switch kind {
	case engine.ChangeAdd:
		return color.GreenString("+")
	case engine.ChangeUpdate:
		return color.YellowString("~")
	case engine.ChangeRemove:
		return color.RedString("-")
	default:
		return "?"
	}
}

func changeLine(seq int64, c engine.Change) string {
	if c.Kind == engine.ChangeRemove {
		return fmt.Sprintf("[%d] %s", seq, c.Record.ID)
	}
	return fmt.Sprintf("[%d] %s %s", seq, c.Record.ID, c.Record.Data)
}
