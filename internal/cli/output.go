package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// Error codes reported in CLIError.Code.
const (
	ErrCodeLex           = "E101"
	ErrCodeParse         = "E102"
	ErrCodeInterpolation = "E103"
	ErrCodeQuery         = "E199" // Any other compile failure
	ErrCodeStore         = "E201"
	ErrCodeInput         = "E202" // Unreadable record input
	ErrCodeConfig        = "E301"
	ErrCodeScenario      = "E401" // One or more scenarios failed
)

// OutputFormatter writes command results as text or as one JSON
// envelope per call.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Diagnostics; falls back to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope every command emits with --format json.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error half of CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (f *OutputFormatter) json() bool { return f.Format == "json" }

// encode writes one envelope. HTML escaping is off so comparison
// operators in selections print as written.
func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// Success outputs data. Text mode prints it with fmt, so a string or a
// fmt.Stringer controls its own layout.
func (f *OutputFormatter) Success(data any) error {
	if f.json() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error. Details are only shown in text mode with
// --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.json() {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %+v\n", details)
	}
	return nil
}

// VerboseLog writes a diagnostic line when --verbose is set. Diagnostics
// go to ErrWriter so they never interleave with a JSON envelope.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.diag(), format+"\n", args...)
	}
}

func (f *OutputFormatter) diag() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
