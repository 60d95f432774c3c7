package snapshot

// LineEdit is one sparse (index, content) pair within a Delta, after the
// shift has been applied. A nil Content signals "truncate Lines at this
// index and discard the rest"; only the first such entry is meaningful.
type LineEdit struct {
	Index   int
	Content *RichLine // nil = truncation marker
}

// Delta describes the transition prev -> curr. Every field is optional;
// a zero value (nil pointer / nil slice / false) means "unchanged" except
// where noted.
type Delta struct {
	Shift     int64 // leading lines dropped; always present, may be 0
	Lines     []LineEdit
	Cursor    *Cursor
	Cols      *int
	Rows      *int
	Alternate *bool
}

// ComputeDiff computes the Delta taking prev to curr, or nil if curr
// requires a fresh keyframe (tracking loss, or a negative shift).
func ComputeDiff(prev, curr Snapshot) *Delta {
	if curr.LinesOffset == nil {
		return nil
	}
	prevOffset := prev.linesOffsetOrZero()
	shift := *curr.LinesOffset - prevOffset
	if shift < 0 {
		return nil
	}

	d := &Delta{Shift: shift}

	// Virtually shift prev: prevShifted[i] == prev.Lines[i+shift].
	shiftedLen := int64(len(prev.Lines)) - shift
	if shiftedLen < 0 {
		shiftedLen = 0
	}

	var edits []LineEdit
	overlap := shiftedLen
	if int64(len(curr.Lines)) < overlap {
		overlap = int64(len(curr.Lines))
	}
	for i := int64(0); i < overlap; i++ {
		pl := prev.Lines[i+shift]
		cl := curr.Lines[i]
		if !pl.Equal(cl) {
			edits = append(edits, LineEdit{Index: int(i), Content: &cl})
		}
	}
	for i := overlap; i < int64(len(curr.Lines)); i++ {
		cl := curr.Lines[i]
		edits = append(edits, LineEdit{Index: int(i), Content: &cl})
	}
	if int64(len(curr.Lines)) < shiftedLen {
		edits = append(edits, LineEdit{Index: len(curr.Lines), Content: nil})
	}
	d.Lines = edits

	if curr.Cursor != prev.Cursor {
		c := curr.Cursor
		d.Cursor = &c
	}
	if curr.Cols != prev.Cols {
		v := curr.Cols
		d.Cols = &v
	}
	if curr.Rows != prev.Rows {
		v := curr.Rows
		d.Rows = &v
	}
	if curr.Alternate != prev.Alternate {
		v := curr.Alternate
		d.Alternate = &v
	}
	return d
}

// ApplyDiff reconstructs curr from base + delta, stamping the given
// timestamp. For every (prev, curr) pair where ComputeDiff is non-nil,
// ApplyDiff(prev, ComputeDiff(prev, curr), curr.Timestamp).Equal(curr).
func ApplyDiff(base Snapshot, d Delta, timestamp int64) Snapshot {
	lines := make([]RichLine, 0, len(base.Lines))
	if d.Shift > 0 {
		if d.Shift >= int64(len(base.Lines)) {
			lines = lines[:0]
		} else {
			lines = append(lines, base.Lines[d.Shift:]...)
		}
	} else {
		lines = append(lines, base.Lines...)
	}

	for _, e := range d.Lines {
		if e.Content == nil {
			if e.Index <= len(lines) {
				lines = lines[:e.Index]
			}
			break
		}
		for len(lines) <= e.Index {
			lines = append(lines, NewPlainLine(""))
		}
		lines[e.Index] = *e.Content
	}

	out := Snapshot{
		Lines:     lines,
		Cursor:    base.Cursor,
		Cols:      base.Cols,
		Rows:      base.Rows,
		Alternate: base.Alternate,
		Timestamp: timestamp,
	}
	if d.Cursor != nil {
		out.Cursor = *d.Cursor
	}
	if d.Cols != nil {
		out.Cols = *d.Cols
	}
	if d.Rows != nil {
		out.Rows = *d.Rows
	}
	if d.Alternate != nil {
		out.Alternate = *d.Alternate
	}
	newOffset := base.linesOffsetOrZero() + d.Shift
	out.LinesOffset = Offset(newOffset)
	return out
}
