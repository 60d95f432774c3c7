// Package emulator wraps a mainstream VT emulator (github.com/vito/midterm,
// via the dcosson/midterm fork h2 already depends on) with cursor-visibility
// tracking, rich-text extraction, and absolute scrollback-offset tracking.
package emulator

import (
	"strings"

	"github.com/dcosson/termscene/internal/snapshot"
	"github.com/vito/midterm"
)

// Emulator produces snapshot.Snapshot values from raw PTY bytes. It is not
// safe for concurrent use; callers (the vt package) serialize access.
type Emulator struct {
	term           *midterm.Terminal
	cols, rows     int
	scrollbackCap  int
	scanner        modeScanner
	cursorVisible  bool
	alternate      bool
	cumulativeTrim int64
	trackingLost   bool // true until the next normal-screen Take() call
	lastNormalOff  *int64
	scrollback     []snapshot.RichLine
	cachedCols     int
}

// New creates an emulator with the given dimensions and scrollback line cap.
func New(cols, rows, scrollback int) *Emulator {
	e := &Emulator{
		term:          midterm.NewTerminal(rows, cols),
		cols:          cols,
		rows:          rows,
		scrollbackCap: scrollback,
		cursorVisible: true,
		cachedCols:    cols,
	}
	e.scanner.onMode = e.handleMode
	e.term.OnScrollback(func(line midterm.Line) {
		e.scrollback = append(e.scrollback, lineFromDisplay(line))
		if len(e.scrollback) > e.scrollbackCap {
			trim := len(e.scrollback) - e.scrollbackCap
			e.scrollback = e.scrollback[trim:]
			e.cumulativeTrim += int64(trim)
		}
	})
	return e
}

func (e *Emulator) handleMode(params string, final byte) {
	set := final == 'h'
	for _, p := range strings.Split(params, ";") {
		switch p {
		case "25":
			e.cursorVisible = set
		case "47", "1047", "1049":
			e.setAlternate(set)
		}
	}
}

func (e *Emulator) setAlternate(active bool) {
	e.alternate = active
}

// Write feeds bytes into the emulator.
func (e *Emulator) Write(p []byte) {
	e.scanner.feed(p)
	e.term.Write(p)
}

// Resize changes dimensions. This invalidates the scrollback marker and
// cache; the next Take() reports tracking loss and offset tracking
// resumes from zero afterward.
func (e *Emulator) Resize(cols, rows int) {
	e.cols = cols
	e.rows = rows
	e.term.Resize(rows, cols)
	e.scrollback = nil
	e.cumulativeTrim = 0
	e.cachedCols = cols
	e.lastNormalOff = nil
	e.trackingLost = true
}

// Take captures the current state as a Snapshot, applying trailing-blank
// stripping and scrollback-offset bookkeeping.
func (e *Emulator) Take(timestamp int64) snapshot.Snapshot {
	if e.cachedCols != e.cols {
		e.scrollback = nil
		e.cachedCols = e.cols
	}

	visible := make([]snapshot.RichLine, e.childRows())
	for i := 0; i < e.childRows(); i++ {
		visible[i] = buildRow(e.term, i)
	}

	var lines []snapshot.RichLine
	var offset *int64

	switch {
	case e.alternate:
		lines = visible
		offset = e.lastNormalOff
	case e.trackingLost:
		lines = append(append(lines, e.scrollback...), visible...)
		offset = nil
		e.trackingLost = false
	default:
		lines = append(append(lines, e.scrollback...), visible...)
		v := e.cumulativeTrim
		offset = &v
		e.lastNormalOff = &v
	}

	cursor := snapshot.Cursor{
		X:       e.term.Cursor.X,
		Y:       0,
		Visible: e.cursorVisible,
	}

	cursorAbsLine := e.term.Cursor.Y
	if !e.alternate {
		cursorAbsLine += len(e.scrollback)
	}
	lines, cursor.Y = stripTrailingBlanks(lines, cursorAbsLine, cursor.Visible)

	return snapshot.Snapshot{
		Lines:       lines,
		Cursor:      cursor,
		Cols:        e.cols,
		Rows:        e.rows,
		Alternate:   e.alternate,
		LinesOffset: offset,
		Timestamp:   timestamp,
	}
}

func (e *Emulator) childRows() int {
	return len(e.term.Content)
}

// stripTrailingBlanks implements: end = max(cursorVisible ? cursorAbs+1 :
// 0, lastNonBlank+1); slice lines to [0,end); recompute cursor.y as
// len(lines)-1-cursorAbs, clamped to 0.
func stripTrailingBlanks(lines []snapshot.RichLine, cursorAbsLine int, cursorVisible bool) ([]snapshot.RichLine, int) {
	lastNonBlank := -1
	for i, l := range lines {
		if strings.TrimRight(l.Text(), " ") != "" {
			lastNonBlank = i
		}
	}
	end := lastNonBlank + 1
	if cursorVisible {
		want := cursorAbsLine + 1
		if want > end {
			end = want
		}
	}
	if end > len(lines) {
		end = len(lines)
	}
	if end < 0 {
		end = 0
	}
	lines = lines[:end]

	y := len(lines) - 1 - cursorAbsLine
	if y < 0 {
		y = 0
	}
	return lines, y
}

func lineFromDisplay(line midterm.Line) snapshot.RichLine {
	return snapshot.NewPlainLine(strings.TrimRight(line.Display(), " "))
}

func buildRow(term *midterm.Terminal, row int) snapshot.RichLine {
	if row < 0 || row >= len(term.Content) {
		return snapshot.NewPlainLine("")
	}
	line := term.Content[row]
	effLen := len(line)
	for effLen > 0 && (line[effLen-1] == ' ' || line[effLen-1] == 0) {
		effLen--
	}
	if effLen == 0 {
		return snapshot.NewPlainLine("")
	}

	var b snapshot.Builder
	var pos int
	for region := range term.Format.Regions(row) {
		if pos >= effLen {
			break
		}
		end := pos + region.Size
		contentEnd := end
		if contentEnd > effLen {
			contentEnd = effLen
		}
		if pos < len(line) && pos < contentEnd {
			ce := contentEnd
			if ce > len(line) {
				ce = len(line)
			}
			text := runesToString(line[pos:ce])
			if text != "" {
				b.Add(text, attrsFromSGR(region.F.Render()))
			}
		}
		pos = end
	}
	return b.Line()
}

func runesToString(rs []rune) string {
	var sb strings.Builder
	for _, r := range rs {
		if r == 0 {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
