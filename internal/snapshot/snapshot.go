package snapshot

// Cursor is the terminal's cursor position and visibility. X is a 0-based
// column. Y is measured from the end of Lines: 0 is the last line, 1 the
// second-to-last, and so on.
type Cursor struct {
	X       int
	Y       int
	Visible bool
}

// Snapshot is a point-in-time capture of screen content, cursor, and
// scrollback addressing. Values are immutable once constructed; producers
// must build a new Snapshot rather than mutate one in place.
type Snapshot struct {
	Lines       []RichLine
	Cursor      Cursor
	Cols        int
	Rows        int
	Alternate   bool
	LinesOffset *int64 // absolute index of Lines[0] in the virtual buffer; nil = tracking lost
	Timestamp   int64  // milliseconds since epoch
}

// CursorLineIndex returns the index into Lines that the cursor sits on,
// or -1 if Lines is empty. When Cursor.Visible, this index is always
// within [0, len(Lines)).
func (s Snapshot) CursorLineIndex() int {
	if len(s.Lines) == 0 {
		return -1
	}
	idx := len(s.Lines) - 1 - s.Cursor.Y
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.Lines) {
		idx = len(s.Lines) - 1
	}
	return idx
}

// AbsoluteLineIndex converts a line index within s.Lines to an absolute
// buffer index, using LinesOffset (treated as 0 when nil).
func (s Snapshot) AbsoluteLineIndex(i int) int64 {
	return s.linesOffsetOrZero() + int64(i)
}

// End returns the absolute index one past the last line in this snapshot.
func (s Snapshot) End() int64 {
	return s.linesOffsetOrZero() + int64(len(s.Lines))
}

func (s Snapshot) linesOffsetOrZero() int64 {
	if s.LinesOffset == nil {
		return 0
	}
	return *s.LinesOffset
}

// Offset builds an *int64 for LinesOffset.
func Offset(v int64) *int64 { return &v }

// CollectLines returns the lines covering the absolute range [start, end),
// clamped to what s actually has available. Positions outside the
// available range are silently dropped rather than erroring, since
// callers (scene continuations) only ever request ranges they've already
// validated against LinesOffset/End.
func (s Snapshot) CollectLines(start, end int64) []RichLine {
	base := s.linesOffsetOrZero()
	lo := start - base
	hi := end - base
	if lo < 0 {
		lo = 0
	}
	if hi > int64(len(s.Lines)) {
		hi = int64(len(s.Lines))
	}
	if lo >= hi {
		return nil
	}
	out := make([]RichLine, hi-lo)
	copy(out, s.Lines[lo:hi])
	return out
}

// Equal reports whether two snapshots are equal ignoring Timestamp. Rich
// text comparison is structural (RichLine.Equal), so representation
// differences are observable.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.Cursor != o.Cursor || s.Cols != o.Cols || s.Rows != o.Rows || s.Alternate != o.Alternate {
		return false
	}
	if (s.LinesOffset == nil) != (o.LinesOffset == nil) {
		return false
	}
	if s.LinesOffset != nil && *s.LinesOffset != *o.LinesOffset {
		return false
	}
	if len(s.Lines) != len(o.Lines) {
		return false
	}
	for i := range s.Lines {
		if !s.Lines[i].Equal(o.Lines[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep-enough copy suitable for retaining as "previous
// snapshot" across mutation of the source buffers. Lines are copied by
// value (RichLine itself is immutable once built) so the slice header is
// all that needs duplicating.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Lines = make([]RichLine, len(s.Lines))
	copy(out.Lines, s.Lines)
	if s.LinesOffset != nil {
		v := *s.LinesOffset
		out.LinesOffset = &v
	}
	return out
}
