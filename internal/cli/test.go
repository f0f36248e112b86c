package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/selq/internal/engine"
	"github.com/roach88/selq/internal/harness"
	"github.com/roach88/selq/internal/kvstore"
	"github.com/roach88/selq/internal/selection"
	"github.com/roach88/selq/internal/store"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Golden string // directory of <scenario>.golden reports
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-file|dir>...",
		Short: "Run query scenarios",
		Long: `Run YAML query scenarios: seed records, check every query's result ids,
and drive live queries through their write steps.

Each scenario gets a fresh in-memory sqlite or badger backend. With
--backend postgres the configured database is used and each scenario
runs in its own uniquely named collection.

With --golden the text report of every scenario is also compared with
<dir>/<scenario>.golden; --update rewrites those files instead.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  selq test ./scenarios
  selq test ./scenarios --filter "albums*"
  selq test ./scenarios --golden ./scenarios/golden --update
  selq test albums.yaml --backend badger --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Golden, "golden", "", "directory of golden reports")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files (requires --golden)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, paths []string, cmd *cobra.Command) error {
	if opts.Update && opts.Golden == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}

	var scenarioFiles []string
	for _, path := range paths {
		files, err := findScenarioFiles(path, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		scenarioFiles = append(scenarioFiles, files...)
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	compiler, err := selection.NewCompiler(opts.Config.CacheSize)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create compiler", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}

	for _, scenarioFile := range scenarioFiles {
		scenResult := runScenario(scenarioFile, compiler, opts, cmd)
		if opts.Format != "json" {
			printScenarioResult(cmd.OutOrStdout(), scenResult)
		}
		result.Scenarios = append(result.Scenarios, scenResult)

		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

var scenarioExts = map[string]bool{".yaml": true, ".yml": true}

// findScenarioFiles returns path itself when it is a file, or every YAML
// file beneath it, in lexical order, whose base name matches filter.
func findScenarioFiles(path string, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", filter, err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() || !scenarioExts[filepath.Ext(p)]:
			return nil
		case filter != "":
			name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}
		files = append(files, p)
		return nil
	})
	return files, err
}

// runScenario executes a single scenario and returns the result.
func runScenario(scenarioFile string, compiler *selection.Compiler, opts *TestOptions, cmd *cobra.Command) ScenarioResult {
	failed := func(name string, format string, args ...any) ScenarioResult {
		return ScenarioResult{
			Name:   name,
			File:   scenarioFile,
			Errors: []string{fmt.Sprintf(format, args...)},
		}
	}

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return failed(filepath.Base(scenarioFile), "failed to load scenario: %v", err)
	}

	backend, err := scenarioBackend(cmd, opts.Config, scenario)
	if err != nil {
		return failed(scenario.Name, "failed to open backend: %v", err)
	}
	defer backend.Close()

	h, err := harness.New(backend,
		harness.WithCompiler(compiler),
		harness.WithLogger(slog.Default()),
	)
	if err != nil {
		return failed(scenario.Name, "failed to create harness: %v", err)
	}

	result, err := h.Run(cmd.Context(), scenario)
	if err != nil {
		return failed(scenario.Name, "execution failed: %v", err)
	}

	sr := ScenarioResult{
		Name:   scenario.Name,
		File:   scenarioFile,
		Pass:   result.Pass,
		Errors: result.Errors,
	}

	if opts.Golden != "" {
		if err := checkGolden(opts, scenario.Name, harness.Report(result)); err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, err.Error())
		}
	}
	return sr
}

// scenarioBackend opens an empty backend for one scenario.
func scenarioBackend(cmd *cobra.Command, cfg Config, scenario *harness.Scenario) (engine.Backend, error) {
	switch cfg.Backend {
	case BackendSQLite:
		return store.Open(":memory:")
	case BackendBadger:
		return kvstore.Open("")
	case BackendPostgres:
		scenario.Collection = scenario.Collection + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		return openBackend(cmd.Context(), cfg)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// checkGolden compares report with the scenario's golden file, or
// rewrites it when updating.
func checkGolden(opts *TestOptions, name, report string) error {
	path := filepath.Join(opts.Golden, name+".golden")

	if opts.Update {
		if err := os.MkdirAll(opts.Golden, 0755); err != nil {
			return fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(report), 0644); err != nil {
			return fmt.Errorf("failed to write golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	if string(want) != report {
		return fmt.Errorf("report does not match %s (run with --update to regenerate)", path)
	}
	return nil
}

func printScenarioResult(w io.Writer, r ScenarioResult) {
	if r.Pass {
		fmt.Fprintf(w, "✓ %s\n", r.Name)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", r.Name)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// outputTestJSON writes the whole run as one envelope. Any failure makes
// it an error envelope that still carries the per-scenario results.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
	if result.Failed == 0 {
		return f.Success(result)
	}

	failure := scenarioFailure(result)
	if err := f.encode(CLIResponse{
		Status: "error",
		Data:   result,
		Error:  &CLIError{Code: ErrCodeScenario, Message: failure.Message},
	}); err != nil {
		return err
	}
	return failure
}

func scenarioFailure(result TestResult) *ExitError {
	return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d scenario(s) failed", result.Failed), Reported: true}
}

// outputTestText outputs the test result as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return scenarioFailure(result)
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
