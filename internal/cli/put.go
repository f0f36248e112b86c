package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/selq/internal/ir"
)

// PutOptions holds flags for the put command.
type PutOptions struct {
	*RootOptions
	File string
}

// PutResult is the put command's output.
type PutResult struct {
	Collection string   `json:"collection"`
	IDs        []string `json:"ids"`
	Seq        int64    `json:"seq"` // Seq of the last write
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <collection> [document]",
		Short: "Write records into a collection",
		Long: `Write one or more JSON records into a collection.

Records come from the document argument, from --file (YAML or JSON), or
from stdin when --file is "-". A document is a single object or a list of
objects. Records without an "id" get a generated UUIDv7.

Examples:
  selq put albums '{"id": "a1", "name": "Purple Rain", "artist": "Prince", "year": 1984}'
  selq put albums --file albums.yaml`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "YAML or JSON file with records (- for stdin)")

	return cmd
}

func runPut(opts *PutOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	collection := args[0]

	var input []byte
	switch {
	case len(args) == 2 && opts.File != "":
		return NewExitError(ExitCommandError, "pass either a document or --file, not both")
	case len(args) == 2:
		input = []byte(args[1])
	case opts.File == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return reportError(formatter, ExitCommandError, ErrCodeInput, "read stdin", err, nil)
		}
		input = data
	case opts.File != "":
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return reportError(formatter, ExitCommandError, ErrCodeInput, "read records file", err, nil)
		}
		input = data
	default:
		return NewExitError(ExitCommandError, "no records: pass a document or --file")
	}

	records, err := decodeRecords(collection, input)
	if err != nil {
		return reportError(formatter, ExitCommandError, ErrCodeInput, "invalid records", err, nil)
	}

	ctx := cmd.Context()
	eng, cleanup, err := openEngine(ctx, opts.Config)
	if err != nil {
		return err
	}
	defer cleanup()

	result := PutResult{Collection: collection, IDs: make([]string, 0, len(records))}
	for _, rec := range records {
		stored, err := eng.Put(ctx, rec)
		if err != nil {
			return reportError(formatter, ExitFailure, ErrCodeStore, "write record", err, nil)
		}
		result.IDs = append(result.IDs, stored.ID)
		result.Seq = stored.Seq
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success(fmt.Sprintf("wrote %d record(s) to %s (seq %d)", len(result.IDs), collection, result.Seq))
}

// decodeRecords reads a YAML or JSON document holding one object or a
// list of objects. JSON is valid YAML, so one decoder serves both.
func decodeRecords(collection string, input []byte) ([]ir.Record, error) {
	var doc any
	decoder := yaml.NewDecoder(bytes.NewReader(input))
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	var objects []any
	switch v := doc.(type) {
	case map[string]any:
		objects = []any{v}
	case []any:
		objects = v
	default:
		return nil, fmt.Errorf("expected an object or a list of objects, got %T", doc)
	}

	records := make([]ir.Record, 0, len(objects))
	for i, obj := range objects {
		m, ok := obj.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record %d: expected an object, got %T", i, obj)
		}
		id, _ := m[ir.IDField].(string)
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, ir.Record{Collection: collection, ID: id, Data: data})
	}
	return records, nil
}
