package document

import (
	"errors"
	"fmt"
)

// ErrOffsetOutOfRange is returned when a position or offset falls
// outside the document's text, or lands mid-codepoint.
var ErrOffsetOutOfRange = errors.New("document: offset out of range")

// ErrClosed names the condition of a document whose reference count
// has reached zero. Document methods do not check the reference count
// and never return it: a released Document keeps answering from its
// last state.
var ErrClosed = errors.New("document: document is closed")

// OverlapError reports that a queued edit overlaps an existing one
// (spec.md §4.5.1).
type OverlapError struct {
	New, Existing edit
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("document: edit [%d:%d) overlaps existing edit [%d:%d)", e.New.from, e.New.to, e.Existing.from, e.Existing.to)
}

// ErrOverlappingEdit is a sentinel satisfied by every *OverlapError via
// errors.Is, for callers that only care that an overlap occurred.
var ErrOverlappingEdit = errors.New("document: overlapping edit")

func (e *OverlapError) Is(target error) bool {
	return target == ErrOverlappingEdit
}
