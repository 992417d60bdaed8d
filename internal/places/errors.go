package places

import "fmt"

// TransformError reports a source row that cannot be turned into a
// WriteRecord. The row is skipped and counted.
type TransformError struct {
	Field  string
	Reason string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform error: %s %s", e.Field, e.Reason)
}

// WriteError reports a record the store rejected during the per-record
// fallback.
type WriteError struct {
	ID  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("insert error for %s: %v", e.ID, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
