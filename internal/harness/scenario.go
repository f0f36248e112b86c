package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/selq/internal/ir"
	"github.com/roach88/selq/internal/selection"
)

// Scenario is a set of records plus the queries to check against them.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Collection receives every record. Default: "records".
	Collection string `yaml:"collection,omitempty"`

	// Records are JSON-like documents; each needs a string "id".
	Records []map[string]any `yaml:"records"`

	Queries []QueryCase `yaml:"queries,omitempty"`

	Live []LiveCase `yaml:"live,omitempty"`
}

// QueryCase is a one-shot fetch with its expected outcome.
type QueryCase struct {
	Name  string `yaml:"name"`
	Query string `yaml:"query"`

	// Mode is plain (default), quoted or structural.
	Mode string `yaml:"mode,omitempty"`

	// Args are positional bindings for quoted mode.
	Args []any `yaml:"args,omitempty"`

	// Set holds named bindings.
	Set map[string]any `yaml:"set,omitempty"`

	// Expect is the ordered list of matching ids.
	Expect []string `yaml:"expect,omitempty"`

	// Error is the expected failure class instead of results:
	// lex, parse or interpolation.
	Error string `yaml:"error,omitempty"`
}

// LiveCase subscribes to a query and applies writes one step at a time.
type LiveCase struct {
	Name  string         `yaml:"name"`
	Query string         `yaml:"query"`
	Mode  string         `yaml:"mode,omitempty"`
	Args  []any          `yaml:"args,omitempty"`
	Set   map[string]any `yaml:"set,omitempty"`
	Steps []LiveStep     `yaml:"steps"`
}

// LiveStep is one write. Exactly one of Put and Delete is set. Expect
// lists the changes as "<kind> <id>" (add, update, remove).
type LiveStep struct {
	Put    map[string]any `yaml:"put,omitempty"`
	Delete string         `yaml:"delete,omitempty"`
	Expect []string       `yaml:"expect"`
}

// Error classes a QueryCase may expect.
const (
	ErrorLex           = "lex"
	ErrorParse         = "parse"
	ErrorInterpolation = "interpolation"
)

// DefaultCollection is used when a scenario names none.
const DefaultCollection = "records"

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if scenario.Collection == "" {
		scenario.Collection = DefaultCollection
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Queries) == 0 && len(s.Live) == 0 {
		return fmt.Errorf("at least one query or live case is required")
	}

	for i, rec := range s.Records {
		if _, err := recordID(rec); err != nil {
			return fmt.Errorf("records[%d]: %w", i, err)
		}
	}

	for i, q := range s.Queries {
		if q.Name == "" {
			return fmt.Errorf("queries[%d]: name is required", i)
		}
		if q.Query == "" {
			return fmt.Errorf("queries[%d] (%s): query is required", i, q.Name)
		}
		if _, err := parseMode(q.Mode); err != nil {
			return fmt.Errorf("queries[%d] (%s): %w", i, q.Name, err)
		}
		switch q.Error {
		case "", ErrorLex, ErrorParse, ErrorInterpolation:
		default:
			return fmt.Errorf("queries[%d] (%s): unknown error class %q", i, q.Name, q.Error)
		}
		if q.Error != "" && len(q.Expect) > 0 {
			return fmt.Errorf("queries[%d] (%s): expect and error are mutually exclusive", i, q.Name)
		}
	}

	for i, l := range s.Live {
		if l.Name == "" {
			return fmt.Errorf("live[%d]: name is required", i)
		}
		if _, err := parseMode(l.Mode); err != nil {
			return fmt.Errorf("live[%d] (%s): %w", i, l.Name, err)
		}
		if len(l.Steps) == 0 {
			return fmt.Errorf("live[%d] (%s): steps list is required and must be non-empty", i, l.Name)
		}
		for j, step := range l.Steps {
			if (step.Put == nil) == (step.Delete == "") {
				return fmt.Errorf("live[%d] (%s) step %d: exactly one of put and delete is required", i, l.Name, j+1)
			}
			if step.Put != nil {
				if _, err := recordID(step.Put); err != nil {
					return fmt.Errorf("live[%d] (%s) step %d: %w", i, l.Name, j+1, err)
				}
			}
		}
	}
	return nil
}

func parseMode(s string) (selection.Mode, error) {
	if s == "" {
		return selection.ModePlain, nil
	}
	return selection.ParseMode(s)
}

func recordID(doc map[string]any) (string, error) {
	id, ok := doc[ir.IDField].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("record needs a string %q field", ir.IDField)
	}
	return id, nil
}

// toRecord converts a YAML document into a record of collection.
func toRecord(collection string, doc map[string]any) (ir.Record, error) {
	id, err := recordID(doc)
	if err != nil {
		return ir.Record{}, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return ir.Record{}, fmt.Errorf("record %s: %w", id, err)
	}
	return ir.Record{Collection: collection, ID: id, Data: data}, nil
}

// bindings converts YAML binding values into literals.
func bindings(args []any, set map[string]any) (selection.Bindings, error) {
	var b selection.Bindings
	for i, arg := range args {
		lit, err := ir.FromValue(arg)
		if err != nil {
			return selection.Bindings{}, fmt.Errorf("args[%d]: %w", i, err)
		}
		b.Values = append(b.Values, lit)
	}
	if len(set) > 0 {
		named, err := selection.Environment(set)
		if err != nil {
			return selection.Bindings{}, err
		}
		b.Named = named
	}
	return b, nil
}
