package dashboard

import (
	"errors"
	"fmt"
)

// ErrAggregate marks a failure of the merge and report logic itself, as
// opposed to a fetch failure, which is always absorbed.
var ErrAggregate = errors.New("aggregate failure")

// ErrSuperseded is returned by Refresh when a newer cycle stored its result
// first.
var ErrSuperseded = errors.New("refresh superseded by a newer cycle")

// AggregateError is the only error Compute returns. Stage names the step of
// the cycle that failed.
type AggregateError struct {
	Stage string
	Err   error
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("dashboard %s stage failed: %v", e.Stage, e.Err)
}

func (e *AggregateError) Unwrap() []error {
	return []error{ErrAggregate, e.Err}
}
