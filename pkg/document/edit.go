package document

import "sort"

// edit is a single queued replacement of text[from:to) with newText.
// Ordering and overlap rules follow spec.md §4.5.1.
type edit struct {
	from, to int
	newText  string
}

// less orders edits by (from, to) so that bisectRight places a new
// edit after every existing edit it ties with, preserving insertion
// order for same-position zero-length edits.
func (e edit) less(other edit) bool {
	if e.from != other.from {
		return e.from < other.from
	}
	return e.to < other.to
}

// overlaps reports whether e and other's [from,to) ranges intersect.
// Two zero-length edits at the same offset do not overlap (spec.md
// §4.5.1): ordered by insertion instead.
func (e edit) overlaps(other edit) bool {
	coversFrom := e.from <= other.from && e.to > other.from
	coversTo := e.from < other.to && e.to >= other.to
	coversBoth := e.from >= other.from && e.to < other.to
	return coversFrom || coversTo || coversBoth
}

// bisectRight returns the index at which e should be inserted into a
// slice sorted by less, placing e after any equal elements.
func bisectRight(edits []edit, e edit) int {
	return sort.Search(len(edits), func(i int) bool { return e.less(edits[i]) })
}

// queueEdit inserts e into the sorted pending buffer, rejecting it if
// it overlaps its immediate predecessor or successor.
func queueEdit(pending []edit, e edit) ([]edit, error) {
	at := bisectRight(pending, e)
	if at > 0 && pending[at-1].overlaps(e) {
		return nil, &OverlapError{New: e, Existing: pending[at-1]}
	}
	if at < len(pending) && pending[at].overlaps(e) {
		return nil, &OverlapError{New: e, Existing: pending[at]}
	}
	out := make([]edit, 0, len(pending)+1)
	out = append(out, pending[:at]...)
	out = append(out, e)
	out = append(out, pending[at:]...)
	return out, nil
}
