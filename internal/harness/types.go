package harness

// QueryOutcome is what one QueryCase produced.
type QueryOutcome struct {
	Name      string   `json:"name"`
	Source    string   `json:"source"`
	Canonical string   `json:"canonical,omitempty"`
	IDs       []string `json:"ids"`

	// ErrorClass is lex, parse, interpolation or other; empty on success.
	ErrorClass string `json:"error_class,omitempty"`
	Error      string `json:"error,omitempty"`
}

// LiveOutcome is what one LiveCase produced.
type LiveOutcome struct {
	Name      string     `json:"name"`
	Canonical string     `json:"canonical"`
	Initial   []string   `json:"initial"`
	Steps     [][]string `json:"steps"`
	Final     []string   `json:"final"`
}

// Result is the outcome of running a scenario.
type Result struct {
	Scenario string         `json:"scenario"`
	Records  int            `json:"records"`
	Pass     bool           `json:"pass"`
	Queries  []QueryOutcome `json:"queries"`
	Live     []LiveOutcome  `json:"live,omitempty"`
	Errors   []string       `json:"errors,omitempty"`
}

// NewResult creates a passing result for the named scenario.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Queries:  []QueryOutcome{},
		Errors:   []string{},
	}
}

// AddError records a mismatch and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
