package chimera

import (
	"fmt"
)

// MalformedRecordError is returned when an input row or alignment record
// cannot be parsed. It aborts the run.
type MalformedRecordError struct {
	// Path is the input file, if known.
	Path string
	// Line is the 1-based line number, or 0 for binary inputs.
	Line int
	// Record is the offending row or record name.
	Record string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	return fmt.Sprintf("malformed record %s (%q): %v", loc, e.Record, e.Err)
}

// Cause implements the github.com/pkg/errors causer interface.
func (e *MalformedRecordError) Cause() error { return e.Err }

// UnsortedInputError is returned when the sort key of an input stream goes
// backwards. It aborts the run.
type UnsortedInputError struct {
	Path string
	// Prev and Cur are the printed sort keys of the two out-of-order records.
	Prev, Cur string
}

func (e *UnsortedInputError) Error() string {
	return fmt.Sprintf("%s: input not sorted: %s follows %s", e.Path, e.Cur, e.Prev)
}

// CoordinateOutOfRangeError is returned when a transcript offset lies outside
// the exonic length of the transcript. The affected candidate is dropped.
type CoordinateOutOfRangeError struct {
	Transcript string
	Offset     int
	Length     int
}

func (e *CoordinateOutOfRangeError) Error() string {
	return fmt.Sprintf("offset %d out of range for transcript %s (length %d)", e.Offset, e.Transcript, e.Length)
}

// ReferenceLookupError is returned when a record names a transcript,
// reference or junction that is not known. The affected candidate is dropped.
type ReferenceLookupError struct {
	// Kind is "transcript", "reference" or "junction".
	Kind string
	Name string
}

func (e *ReferenceLookupError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
}

// IsRecoverable reports whether err only invalidates one candidate. Such
// errors are logged and counted instead of aborting the run.
func IsRecoverable(err error) bool {
	switch err.(type) {
	case *CoordinateOutOfRangeError, *ReferenceLookupError:
		return true
	}
	return false
}
