package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Outcome tags a [Result].
type Outcome int

const (
	// Skipped means the source was not configured or not requested.
	Skipped Outcome = iota

	// Succeeded means Record holds a normalized record.
	Succeeded

	// Failed means Err describes why no record is available.
	Failed
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "success"
	case Failed:
		return "failure"
	default:
		return "skipped"
	}
}

// Result is the tagged outcome of polling one source once.
type Result struct {
	Outcome     Outcome
	Source      string
	Record      Record
	Err         *Error
	CompletedAt time.Time
}

// Success wraps a record.
func Success(source string, rec Record) Result {
	return Result{
		Outcome:     Succeeded,
		Source:      source,
		Record:      rec,
		CompletedAt: time.Now(),
	}
}

// Failure wraps an error of the given kind.
func Failure(source string, kind ErrorKind, err error) Result {
	return Result{
		Outcome:     Failed,
		Source:      source,
		Err:         &Error{Kind: kind, Source: source, Err: err},
		CompletedAt: time.Now(),
	}
}

// Skip returns a skipped result for source.
func Skip(source string) Result {
	return Result{Outcome: Skipped, Source: source, CompletedAt: time.Now()}
}

// OK reports whether the result carries a record.
func (r Result) OK() bool {
	return r.Outcome == Succeeded
}

// ErrorKind classifies failures by the component that produced them.
type ErrorKind string

const (
	// ConfigFetch is non-fatal: the previous configuration is retained.
	ConfigFetch ErrorKind = "config_fetch"

	// PrimaryStatusFetch is the only kind surfaced to consumers as a
	// blocking error.
	PrimaryStatusFetch ErrorKind = "primary_status_fetch"

	// SecondaryStatusFetch is non-fatal: the source is left out of the merge.
	SecondaryStatusFetch ErrorKind = "secondary_status_fetch"

	// Decode means the upstream payload was malformed. It is handled like
	// a fetch error for the owning source.
	Decode ErrorKind = "decode"
)

// Error is a failure attributed to one source.
type Error struct {
	Kind   ErrorKind
	Source string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the error as {kind, source, message} for consumers.
func (e *Error) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Kind    ErrorKind `json:"kind"`
		Source  string    `json:"source"`
		Message string    `json:"message"`
	}{e.Kind, e.Source, msg})
}

// IsKind reports whether err wraps an [*Error] of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}
