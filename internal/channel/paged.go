package channel

import (
	"github.com/dcosson/termscene/internal/gateway"
	"github.com/dcosson/termscene/internal/scene"
	"github.com/dcosson/termscene/internal/snapshot"
)

const truncatedSuffix = "... (truncated)"

// DefaultMaxLen and DefaultMaxPages bound Paged's output when the caller
// doesn't specify its own.
const (
	DefaultMaxLen   = 3500
	DefaultMaxPages = 5
)

// Paged wraps another Channel, splitting any message_created content
// whose rendered text exceeds MaxLen into several message_created events,
// each carrying one page's worth of lines, all delivered in a single
// Receive call. last_message_updated and other events pass through
// unchanged.
// Adapted from internal/bridge/paging.go's SplitMessage/findSplit, which
// split outgoing chat messages for platforms with a message-size limit;
// here pages are packed along RichLine boundaries so a line that already
// fits whole keeps its styling, and only a single line too long for any
// page falls back to a plain-text split.
type Paged struct {
	Inner    gateway.Channel
	MaxLen   int
	MaxPages int
}

// NewPaged wraps inner with the default size limits.
func NewPaged(inner gateway.Channel) *Paged {
	return &Paged{Inner: inner, MaxLen: DefaultMaxLen, MaxPages: DefaultMaxPages}
}

func (p *Paged) Start(send func(scene.Input)) error { return p.Inner.Start(send) }
func (p *Paged) Stop() error                         { return p.Inner.Stop() }

func (p *Paged) Receive(update gateway.Update) error {
	events := make([]scene.Event, 0, len(update.Events))
	for _, e := range update.Events {
		events = append(events, p.splitEvent(e)...)
	}
	return p.Inner.Receive(gateway.Update{Snapshot: update.Snapshot, Events: events})
}

func (p *Paged) splitEvent(e scene.Event) []scene.Event {
	switch e.Kind {
	case scene.MessageCreated:
		d := e.Data.(scene.MessageCreatedData)
		pages := p.splitLines(d.Content)
		if len(pages) <= 1 {
			return []scene.Event{e}
		}
		out := make([]scene.Event, len(pages))
		for i, page := range pages {
			out[i] = scene.NewMessageCreated(d.Style, page, d.Echo)
		}
		return out
	default:
		return []scene.Event{e}
	}
}

// splitLines packs lines into pages of at most maxLen runes apiece,
// never splitting a line in two unless that line alone exceeds maxLen.
// A MaxLen or MaxPages of 0 selects DefaultMaxLen or DefaultMaxPages.
// Any pages beyond maxPages are dropped and the last retained page
// carries a truncation marker.
func (p *Paged) splitLines(lines []snapshot.RichLine) [][]snapshot.RichLine {
	maxLen := p.MaxLen
	if maxLen == 0 {
		maxLen = DefaultMaxLen
	}
	maxPages := p.MaxPages
	if maxPages == 0 {
		maxPages = DefaultMaxPages
	}

	if linesLen(lines) <= maxLen {
		return [][]snapshot.RichLine{lines}
	}

	var pages [][]snapshot.RichLine
	var page []snapshot.RichLine
	pageLen := 0

	flush := func() {
		if len(page) > 0 {
			pages = append(pages, page)
			page = nil
			pageLen = 0
		}
	}

	for _, line := range lines {
		lineLen := len([]rune(line.Text()))
		if lineLen > maxLen {
			flush()
			for _, frag := range splitOversizedLine(line, maxLen) {
				pages = append(pages, []snapshot.RichLine{frag})
			}
			continue
		}
		sep := 0
		if len(page) > 0 {
			sep = 1 // the joining newline between lines on one page
		}
		if pageLen+sep+lineLen > maxLen {
			flush()
			sep = 0
		}
		page = append(page, line)
		pageLen += sep + lineLen
	}
	flush()

	return truncatePages(pages, maxPages)
}

// linesLen returns the combined length of lines, as if joined by "\n".
func linesLen(lines []snapshot.RichLine) int {
	n := 0
	for i, l := range lines {
		if i > 0 {
			n++
		}
		n += len([]rune(l.Text()))
	}
	return n
}

// splitOversizedLine breaks a single line too long for one page into
// maxLen-rune fragments, preferring to cut after a space in the
// fragment's second half. Styling is not preserved across the break.
func splitOversizedLine(line snapshot.RichLine, maxLen int) []snapshot.RichLine {
	text := []rune(line.Text())
	var frags []snapshot.RichLine
	for len(text) > 0 {
		if len(text) <= maxLen {
			frags = append(frags, snapshot.NewPlainLine(string(text)))
			break
		}
		cut := findSplit(text, maxLen)
		frags = append(frags, snapshot.NewPlainLine(string(text[:cut])))
		text = text[cut:]
	}
	return frags
}

// findSplit returns the rune index at which to cut text (longer than
// maxLen) for a fragment of at most maxLen runes, preferring to split
// after a space in the fragment's second half.
func findSplit(text []rune, maxLen int) int {
	window := text[:maxLen]
	mid := maxLen / 2
	for i := len(window) - 1; i >= mid; i-- {
		if window[i] == ' ' {
			return i + 1
		}
	}
	return maxLen
}

// truncatePages caps pages at maxPages (0 means unlimited), appending a
// truncation marker line to the last retained page if any were dropped.
func truncatePages(pages [][]snapshot.RichLine, maxPages int) [][]snapshot.RichLine {
	if maxPages <= 0 || len(pages) <= maxPages {
		return pages
	}
	kept := pages[:maxPages]
	last := append([]snapshot.RichLine(nil), kept[maxPages-1]...)
	last = append(last, snapshot.NewPlainLine(truncatedSuffix))
	kept[maxPages-1] = last
	return kept
}
