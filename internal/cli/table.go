package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/tidwall/gjson"

	"github.com/roach88/selq/internal/ir"
)

// recordColumns returns "id" followed by every other top-level field of
// records, sorted.
func recordColumns(records []ir.Record) []string {
	seen := map[string]bool{ir.IDField: true}
	var fields []string
	for _, rec := range records {
		gjson.ParseBytes(rec.Data).ForEach(func(key, _ gjson.Result) bool {
			if !seen[key.String()] {
				seen[key.String()] = true
				fields = append(fields, key.String())
			}
			return true
		})
	}
	sort.Strings(fields)
	return append([]string{ir.IDField}, fields...)
}

// recordRow renders one record under columns. Strings print bare,
// nested values as JSON, missing fields as empty cells.
func recordRow(rec ir.Record, columns []string) []string {
	values := make(map[string]string, len(columns))
	gjson.ParseBytes(rec.Data).ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.String {
			values[key.String()] = value.String()
		} else {
			values[key.String()] = value.Raw
		}
		return true
	})

	row := make([]string, len(columns))
	for i, col := range columns {
		row[i] = values[col]
	}
	row[0] = rec.ID
	return row
}

// writeRecordTable writes records as a markdown table followed by a
// count line.
func writeRecordTable(w io.Writer, records []ir.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "_No records_")
		return
	}

	columns := recordColumns(records)
	alignment := make([]tw.Align, len(columns))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(columns)
	for _, rec := range records {
		table.Append(recordRow(rec, columns))
	}
	table.Render()

	fmt.Fprintf(w, "\n_%d records_\n", len(records))
}
