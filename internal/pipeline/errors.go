package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// SourceFault means the source could not be read. The run stops and the
// report reflects the work done before the fault.
type SourceFault struct {
	Op  string
	Err error
}

func (e *SourceFault) Error() string {
	return fmt.Sprintf("source fault during %s: %v", e.Op, e.Err)
}

func (e *SourceFault) Unwrap() error {
	return e.Err
}

// sourceError wraps a source failure as a SourceFault. Cancellation is
// returned as is so an interrupted run is not blamed on the source.
func sourceError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &SourceFault{Op: op, Err: err}
}

// ErrPageOverflow is wrapped in a SourceFault when a cursor returns more
// rows than were asked for.
var ErrPageOverflow = errors.New("cursor returned more rows than requested")

// ErrNoProgress is returned by the purger when a delete removes none of
// the ids that were just fetched, which would otherwise loop forever.
var ErrNoProgress = errors.New("delete removed no rows; check that the credentials allow deletes")
