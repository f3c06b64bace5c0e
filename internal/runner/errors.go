package runner

import "fmt"

// ProcessorError reports an item the processor failed to answer. No answer
// was submitted for that item and the run was aborted.
type ProcessorError struct {
	RunID  string
	ItemID string
	// Index is the zero-based position of the item within the run.
	Index int
	Err   error
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("run %s: process item %d (%s): %v", e.RunID, e.Index+1, e.ItemID, e.Err)
}

func (e *ProcessorError) Unwrap() error { return e.Err }
