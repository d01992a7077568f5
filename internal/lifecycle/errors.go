package lifecycle

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed transition request. The request is
// rejected with no state change.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// PreconditionError reports a structurally valid request that the current
// state refuses: gate not passed, wrong approval token, wrong phase.
// Rejected with no state change.
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string { return e.Msg }

// IterationLimitError reports an advance past the sprint's iteration
// budget without an override token. The iteration counter is unchanged.
type IterationLimitError struct {
	SprintID      string
	Iteration     int
	MaxIterations int
}

func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("iteration limit exceeded for sprint %q: iteration %d of %d; present override token %q to continue",
		e.SprintID, e.Iteration, e.MaxIterations, OverrideIterationLimit)
}

// ConflictError reports that locking this sprint's manifesto would
// collide with another sprint's locked scope. The caller must resolve
// the overlap before execution can start.
type ConflictError struct {
	SprintID string
	Strategy string
	Subjects []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("sprint %q conflicts with existing sprint scopes (%s): %v", e.SprintID, e.Strategy, e.Subjects)
}

// errReplay aborts a mutation when the request was already applied; the
// remembered outcome is returned instead.
var errReplay = errors.New("request already applied")

// isRejection reports whether err is a domain refusal (no state change)
// as opposed to an infrastructure failure.
func isRejection(err error) bool {
	var (
		ve *ValidationError
		pe *PreconditionError
		ie *IterationLimitError
		ce *ConflictError
	)
	return errors.As(err, &ve) || errors.As(err, &pe) || errors.As(err, &ie) || errors.As(err, &ce)
}
