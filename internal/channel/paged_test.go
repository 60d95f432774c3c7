package channel

import (
	"strings"
	"testing"

	"github.com/dcosson/termscene/internal/gateway"
	"github.com/dcosson/termscene/internal/scene"
	"github.com/dcosson/termscene/internal/snapshot"
)

type recordingChannel struct {
	received []gateway.Update
}

func (r *recordingChannel) Start(func(scene.Input)) error { return nil }
func (r *recordingChannel) Stop() error                     { return nil }
func (r *recordingChannel) Receive(u gateway.Update) error {
	r.received = append(r.received, u)
	return nil
}

func TestSplitLinesUnderLimitIsUnchanged(t *testing.T) {
	p := &Paged{MaxLen: 100, MaxPages: 5}
	lines := []snapshot.RichLine{snapshot.NewPlainLine("short")}
	pages := p.splitLines(lines)
	if len(pages) != 1 || len(pages[0]) != 1 || pages[0][0].Text() != "short" {
		t.Fatalf("expected unchanged single page, got %v", pages)
	}
}

func TestSplitLinesKeepsWholeLinesTogetherOnOnePage(t *testing.T) {
	p := &Paged{MaxLen: 8, MaxPages: 0}
	lines := []snapshot.RichLine{
		snapshot.NewPlainLine(strings.Repeat("a", 5)),
		snapshot.NewPlainLine(strings.Repeat("b", 5)),
	}
	pages := p.splitLines(lines)
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d: %v", len(pages), pages)
	}
	if len(pages[0]) != 1 || pages[0][0].Text() != strings.Repeat("a", 5) {
		t.Fatalf("expected the first page to hold the first line intact, got %v", pages[0])
	}
	if len(pages[1]) != 1 || pages[1][0].Text() != strings.Repeat("b", 5) {
		t.Fatalf("expected the second page to hold the second line intact, got %v", pages[1])
	}
}

func TestSplitLinesSplitsASingleOversizedLine(t *testing.T) {
	p := &Paged{MaxLen: 10, MaxPages: 0}
	lines := []snapshot.RichLine{snapshot.NewPlainLine(strings.Repeat("x", 25))}
	pages := p.splitLines(lines)
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages for a 25-char line split at 10 chars, got %d: %v", len(pages), pages)
	}
	var rebuilt strings.Builder
	for _, page := range pages {
		for _, line := range page {
			rebuilt.WriteString(line.Text())
		}
	}
	if rebuilt.String() != strings.Repeat("x", 25) {
		t.Fatalf("expected the oversized line's text to survive intact across fragments, got %q", rebuilt.String())
	}
}

func TestSplitLinesTruncatesAtMaxPages(t *testing.T) {
	p := &Paged{MaxLen: 10, MaxPages: 3}
	lines := []snapshot.RichLine{snapshot.NewPlainLine(strings.Repeat("x", 100))}
	pages := p.splitLines(lines)
	if len(pages) != 3 {
		t.Fatalf("expected exactly maxPages pages, got %d", len(pages))
	}
	last := pages[2]
	if last[len(last)-1].Text() != truncatedSuffix {
		t.Fatalf("expected the last page to carry a truncation marker line, got %v", last)
	}
}

func TestPagedSplitsLongMessageCreatedEvent(t *testing.T) {
	inner := &recordingChannel{}
	p := &Paged{Inner: inner, MaxLen: 10, MaxPages: 0}

	longLines := []snapshot.RichLine{
		snapshot.NewPlainLine(strings.Repeat("line one ", 5)),
		snapshot.NewPlainLine(strings.Repeat("line two ", 5)),
	}
	update := gateway.Update{Events: []scene.Event{scene.NewMessageCreated("text", longLines, false)}}

	if err := p.Receive(update); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(inner.received) != 1 {
		t.Fatalf("expected exactly one Receive call to the inner channel, got %d", len(inner.received))
	}
	got := inner.received[0].Events
	if len(got) <= 1 {
		t.Fatalf("expected the long message to split into multiple message_created events, got %d", len(got))
	}
	for _, e := range got {
		if e.Kind != scene.MessageCreated {
			t.Fatalf("expected every split event to remain message_created, got kind=%v", e.Kind)
		}
	}
}

func TestPagedPassesThroughShortMessages(t *testing.T) {
	inner := &recordingChannel{}
	p := NewPaged(inner)

	short := []snapshot.RichLine{snapshot.NewPlainLine("hi")}
	update := gateway.Update{Events: []scene.Event{scene.NewMessageCreated("text", short, false)}}
	if err := p.Receive(update); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(inner.received[0].Events) != 1 {
		t.Fatalf("expected short message to pass through as a single event")
	}
}

func TestPagedPassesThroughNonMessageEvents(t *testing.T) {
	inner := &recordingChannel{}
	p := NewPaged(inner)

	update := gateway.Update{Events: []scene.Event{scene.NewIndicatorChanged(true, "busy")}}
	if err := p.Receive(update); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(inner.received[0].Events) != 1 || inner.received[0].Events[0].Kind != scene.IndicatorChanged {
		t.Fatalf("expected indicator_changed to pass through unchanged")
	}
}
