package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/settingsync/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Verification failure (bad signature, untrusted chain, etc.)
	ExitCommandError = 2 // Command error (invalid config, server or storage failure, etc.)
)

// Error codes reported in CLIError.Code and in "Error [E...]" text lines.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeNotFound     = "E005" // Nothing stored under the collection key
	ErrCodeConfig       = "E201" // Invalid configuration or flags
	ErrCodeAPI          = "E301" // Remote server failure
	ErrCodeStorage      = "E302" // Storage read/write or decode failure
	ErrCodeVerification = "E303" // Collection could not be verified
)

// ExitError is returned by commands once the error has been written to the
// formatter; main only needs its Code.
type ExitError struct {
	Code    int // ExitFailure or ExitCommandError
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as text or as a JSON envelope.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; falls back to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope: {"status":"ok","data":...} or
// {"status":"error","error":{...}}.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError carries one of the ErrCode* codes.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"` // e.g. the server's error body
}

func (f *OutputFormatter) isJSON() bool {
	return f.Format == "json"
}

// Success writes a result. Text output relies on the result's String method.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes an error. In text mode details are only shown when verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	if _, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message); err != nil {
		return err
	}
	if f.Verbose && details != nil {
		_, err := fmt.Fprintf(f.Writer, "Details: %v\n", details)
		return err
	}
	return nil
}

// VerboseLog writes a diagnostic line when verbose. Diagnostics go to
// ErrWriter so that JSON on Writer stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// outputError writes err through the formatter and returns the matching
// ExitError. Engine errors map to their own codes; verification failures
// exit with ExitFailure, everything else with ExitCommandError.
func outputError(formatter *OutputFormatter, err error, details any) error {
	code, exit := ErrCodeGeneric, ExitCommandError

	var e *engine.Error
	if errors.As(err, &e) {
		switch e.Kind {
		case engine.KindVerification:
			code, exit = ErrCodeVerification, ExitFailure
		case engine.KindStorage:
			code = ErrCodeStorage
		case engine.KindAPI:
			code = ErrCodeAPI
			if details == nil && e.Response != nil {
				details = e.Response
			}
		}
	}

	return outputCodedError(formatter, exit, code, err.Error(), details)
}

// outputCodedError writes an error with an explicit code.
func outputCodedError(formatter *OutputFormatter, exit int, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(exit, fmt.Sprintf("%s: %s", code, message))
}
