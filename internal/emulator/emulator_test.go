package emulator

import "testing"

func TestCursorVisibilityToggle(t *testing.T) {
	e := New(80, 24, 100)
	e.Write([]byte("\x1b[?25l"))
	snap := e.Take(1)
	if snap.Cursor.Visible {
		t.Fatalf("expected cursor hidden after DECRST 25")
	}
	e.Write([]byte("\x1b[?25h"))
	snap = e.Take(2)
	if !snap.Cursor.Visible {
		t.Fatalf("expected cursor visible after DECSET 25")
	}
}

func TestAlternateScreenToggle(t *testing.T) {
	e := New(80, 24, 100)
	e.Write([]byte("\x1b[?1049h"))
	snap := e.Take(1)
	if !snap.Alternate {
		t.Fatalf("expected alternate screen active")
	}
	e.Write([]byte("\x1b[?1049l"))
	snap = e.Take(2)
	if snap.Alternate {
		t.Fatalf("expected alternate screen inactive after exit")
	}
}

func TestScrollbackOffsetOnlyAdvancesOnEviction(t *testing.T) {
	// Two visible rows: every write past the first scrolls exactly one
	// line into history.
	e := New(80, 2, 3) // scrollback cap 3
	for i := 0; i < 4; i++ {
		e.Write([]byte("line\r\n"))
	}
	snap := e.Take(1)
	if snap.LinesOffset == nil || *snap.LinesOffset != 0 {
		t.Fatalf("expected LinesOffset 0 while scrollback has not yet exceeded its cap, got %v", snap.LinesOffset)
	}

	for i := 0; i < 4; i++ {
		e.Write([]byte("line\r\n"))
	}
	snap = e.Take(2)
	if snap.LinesOffset == nil {
		t.Fatalf("expected tracking to remain intact")
	}
	if *snap.LinesOffset != 4 {
		t.Fatalf("expected LinesOffset to equal only the lines actually evicted past the cap, got %d", *snap.LinesOffset)
	}
}

func TestResizeTriggersTrackingLoss(t *testing.T) {
	e := New(80, 24, 100)
	e.Write([]byte("hello\r\n"))
	e.Take(1)
	e.Resize(100, 30)
	snap := e.Take(2)
	if snap.LinesOffset != nil {
		t.Fatalf("expected tracking loss (nil LinesOffset) on first snapshot after resize")
	}
	snap = e.Take(3)
	if snap.LinesOffset == nil {
		t.Fatalf("expected tracking to resume on the snapshot after resize")
	}
}

func TestPlainTextRoundTrip(t *testing.T) {
	e := New(80, 24, 100)
	e.Write([]byte("hello world"))
	snap := e.Take(1)
	if len(snap.Lines) == 0 {
		t.Fatalf("expected at least one line")
	}
	if got := snap.Lines[0].Text(); got != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", got)
	}
}

func TestModeScannerAcrossChunks(t *testing.T) {
	var s modeScanner
	var gotParams string
	var gotFinal byte
	s.onMode = func(params string, final byte) {
		gotParams = params
		gotFinal = final
	}
	// Split the sequence across two feed() calls to exercise state
	// persistence across writes.
	s.feed([]byte("\x1b[?2"))
	s.feed([]byte("5h"))
	if gotParams != "25" || gotFinal != 'h' {
		t.Fatalf("expected params=25 final=h, got params=%q final=%q", gotParams, gotFinal)
	}
}
