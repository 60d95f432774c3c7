// Package snapshot models the point-in-time terminal capture (Snapshot),
// its rich-text line representation, and the SnapshotDelta codec used to
// express Snapshot-to-Snapshot differences compactly.
package snapshot

import "strings"

// Color is either a 256-color palette index or an explicit RGB hex triple.
// Exactly one of the two is meaningful; Palette is used unless RGB is set.
type Color struct {
	Palette uint8
	RGB     string // "#rrggbb", empty when unset
}

func (c Color) equal(o Color) bool {
	return c.Palette == o.Palette && c.RGB == o.RGB
}

// Attrs carries the SGR attributes that distinguish a Segment's rendering
// from plain text. The zero value is "no attributes".
type Attrs struct {
	Fg            *Color
	Bg            *Color
	Bold          bool
	Dim           bool
	Italic        bool
	Underline     bool
	Strikethrough bool
	Inverse       bool
	Overline      bool
}

func attrsEqual(a, b Attrs) bool {
	if a.Bold != b.Bold || a.Dim != b.Dim || a.Italic != b.Italic ||
		a.Underline != b.Underline || a.Strikethrough != b.Strikethrough ||
		a.Inverse != b.Inverse || a.Overline != b.Overline {
		return false
	}
	if (a.Fg == nil) != (b.Fg == nil) || (a.Bg == nil) != (b.Bg == nil) {
		return false
	}
	if a.Fg != nil && !a.Fg.equal(*b.Fg) {
		return false
	}
	if a.Bg != nil && !a.Bg.equal(*b.Bg) {
		return false
	}
	return true
}

func (a Attrs) isDefault() bool {
	return attrsEqual(a, Attrs{})
}

// Segment is one run of a styled line: either plain text (no styling) or
// text carrying explicit Attrs.
type Segment struct {
	Text  string
	Attrs *Attrs // nil means unstyled
}

// PlainSegment builds an unstyled segment.
func PlainSegment(text string) Segment { return Segment{Text: text} }

// StyledSegment builds a segment carrying the given attributes.
func StyledSegment(text string, attrs Attrs) Segment {
	return Segment{Text: text, Attrs: &attrs}
}

func segmentEqual(a, b Segment) bool {
	if a.Text != b.Text {
		return false
	}
	if (a.Attrs == nil) != (b.Attrs == nil) {
		return false
	}
	if a.Attrs == nil {
		return true
	}
	return attrsEqual(*a.Attrs, *b.Attrs)
}

// RichLine is a line of terminal content: either the plain-string fast path
// (Segments == nil) or an ordered sequence of Segments. The plain-string
// shorthand compares unequal to a one-element Segments slice holding the
// same text: the representation is structurally observable, so this type
// never normalizes one into the other.
type RichLine struct {
	Plain    string
	Segments []Segment // nil for the plain-string fast path
}

// NewPlainLine builds the plain-string fast-path representation.
func NewPlainLine(text string) RichLine { return RichLine{Plain: text} }

// NewStyledLine builds the segment-array representation. Passing a single
// unstyled segment still produces the array form, distinct from
// NewPlainLine with the same text.
func NewStyledLine(segs []Segment) RichLine { return RichLine{Segments: segs} }

// IsPlain reports whether this line uses the plain-string representation.
func (l RichLine) IsPlain() bool { return l.Segments == nil }

// Text concatenates the line's content regardless of representation. Used
// for regex matching against visible text (e.g. scene prompt detection).
func (l RichLine) Text() string {
	if l.IsPlain() {
		return l.Plain
	}
	var b strings.Builder
	for _, s := range l.Segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Equal compares two lines structurally: representation matters, so a
// plain line and a single-segment array of equal text are NOT equal.
func (l RichLine) Equal(o RichLine) bool {
	if l.IsPlain() != o.IsPlain() {
		return false
	}
	if l.IsPlain() {
		return l.Plain == o.Plain
	}
	if len(l.Segments) != len(o.Segments) {
		return false
	}
	for i := range l.Segments {
		if !segmentEqual(l.Segments[i], o.Segments[i]) {
			return false
		}
	}
	return true
}

// Builder accumulates adjacent cells with identical attributes into
// Segments, collapsing to the plain-string shorthand when every run turns
// out to carry default styling. Mirrors the grouping pass h2's
// RenderLineFrom performs over midterm.Format.Regions, run in reverse: here
// we build rich text from cells instead of ANSI from rich text.
type Builder struct {
	segs    []Segment
	cur     strings.Builder
	curAttr Attrs
	curSet  bool
}

// Add appends one cell's text under the given attrs, merging into the
// current run if attrs are unchanged.
func (b *Builder) Add(text string, attrs Attrs) {
	if b.curSet && attrsEqual(b.curAttr, attrs) {
		b.cur.WriteString(text)
		return
	}
	b.flush()
	b.curAttr = attrs
	b.curSet = true
	b.cur.WriteString(text)
}

func (b *Builder) flush() {
	if !b.curSet {
		return
	}
	if b.curAttr.isDefault() {
		b.segs = append(b.segs, PlainSegment(b.cur.String()))
	} else {
		b.segs = append(b.segs, StyledSegment(b.cur.String(), b.curAttr))
	}
	b.cur.Reset()
	b.curSet = false
}

// Line finalizes the builder into a RichLine. If every run carries default
// attributes, the plain-string shorthand is returned; otherwise the
// segment array is returned, even for a single run, preserving the
// structural distinction from the plain-string form.
func (b *Builder) Line() RichLine {
	b.flush()
	if len(b.segs) == 0 {
		return NewPlainLine("")
	}
	allPlain := true
	for _, s := range b.segs {
		if s.Attrs != nil {
			allPlain = false
			break
		}
	}
	if allPlain {
		var sb strings.Builder
		for _, s := range b.segs {
			sb.WriteString(s.Text)
		}
		return NewPlainLine(sb.String())
	}
	return NewStyledLine(b.segs)
}
