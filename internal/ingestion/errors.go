package ingestion

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrInvalidSlot is returned for identifiers that do not parse.
	ErrInvalidSlot = errors.New("invalid slot identifier")
	// ErrSlotUnavailable is returned when a slot is unknown or already
	// receiving an upload.
	ErrSlotUnavailable = errors.New("slot not accepting uploads")
	// ErrNoFile is returned when a request carried no file part.
	ErrNoFile = errors.New("no file uploaded")
	// ErrTooLarge is returned when a file or tag exceeds its size bound.
	ErrTooLarge = errors.New("upload too large")
)

// StorageError reports a failure reading the request stream or accessing
// the sink.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// CommitError reports an index commit failure. The bytes for ID remain in
// the sink without a matching index entry.
type CommitError struct {
	ID     uuid.UUID
	Record *Record
	Err    error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit %s: %v", e.ID, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}
