// Package queryerr defines the ValidationError shape spec.md §3 and §7
// describe: every failure the evaluator, planner, and integrity pass detect
// is appended as data here rather than thrown, so a single query run can
// surface every problem in one pass (spec.md §7 propagation policy).
package queryerr

import "fmt"

// ValidationError is one recorded failure, pinned to the JSON path of the
// AST node that produced it.
type ValidationError struct {
	Path         string
	Message      string
	ExpectedType string
	ActualType   string
	Suggestion   string
	Metadata     map[string]any
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Sink accumulates ValidationErrors across one query's evaluation. It is
// shared by pkg/expr, pkg/planner, pkg/integrity, and pkg/engine via a
// single *Sink threaded through their contexts, mirroring
// QueryContext.validationErrors.
type Sink struct {
	Errors []ValidationError
}

// NewSink returns an empty error sink.
func NewSink() *Sink { return &Sink{} }

// Add records one failure.
func (s *Sink) Add(e ValidationError) {
	s.Errors = append(s.Errors, e)
}

// Addf is a convenience for the common case of a message with no
// expected/actual type pair.
func (s *Sink) Addf(path, format string, args ...any) {
	s.Add(ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// CanCommit is spec.md §3 invariant 2: canCommit == (validationErrors is empty).
func (s *Sink) CanCommit() bool { return len(s.Errors) == 0 }
