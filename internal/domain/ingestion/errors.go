package ingestion

import (
	"errors"
	"fmt"
)

var (
	ErrNoFiles    = errors.New("no files supplied")
	ErrSlotClosed = errors.New("ingestion slot is closed")
)

// Error is a failed read of one file. The slot that requested it keeps its
// previous value.
type Error struct {
	Filename string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ingesting %q: %v", e.Filename, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
