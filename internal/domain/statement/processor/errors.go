package processor

import (
	"fmt"

	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/classifier"
)

// UnrecognizedFormatError is fatal for the document: the container type could
// not be determined, so no extraction was attempted.
type UnrecognizedFormatError struct {
	Filename string
	Size     int
}

func (e *UnrecognizedFormatError) Error() string {
	return fmt.Sprintf("unrecognized document format: %s (%d bytes)", e.Filename, e.Size)
}

// FileTooLargeError is returned before any processing when the input exceeds
// the configured hard cap.
type FileTooLargeError struct {
	Filename string
	Size     int64
	Limit    int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file too large: %s is %d bytes, limit is %d", e.Filename, e.Size, e.Limit)
}

// InsufficientDataError wraps an extractor's insufficient-data failure with
// document context.
type InsufficientDataError struct {
	Filename string
	Kind     classifier.Kind
	Err      error
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data in %s (%s): %v", e.Filename, e.Kind, e.Err)
}

func (e *InsufficientDataError) Unwrap() error {
	return e.Err
}
