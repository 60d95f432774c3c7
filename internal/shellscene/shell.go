// Package shellscene implements a reference shell scene: an idle/running
// state machine driven by matching a prompt regex against the cursor
// line. Grounded on internal/overlay/overlay.go and
// internal/session/client/render.go's cursor-anchored windowing (locating
// the live input region relative to the cursor line and reserved rows),
// adapted from "render a client-facing overlay" to "classify snapshot
// transitions into scene events".
package shellscene

import (
	"regexp"
	"sync"

	"github.com/dcosson/termscene/internal/scene"
	"github.com/dcosson/termscene/internal/snapshot"
)

// DefaultPromptPattern matches a bare "$" prompt.
const DefaultPromptPattern = `^\$`

type stateKind int

const (
	stateNone stateKind = iota
	stateIdle
	stateRunning
)

// Shell is the reference prompt-driven scene.
type Shell struct {
	priority       int
	promptRe       *regexp.Regexp
	promptPrefixRe *regexp.Regexp // optional

	mu   sync.Mutex
	kind stateKind

	// idle
	promptStart, promptEnd int64

	// running
	emittedUpTo int64
}

// New builds a Shell scene. promptRe defaults to DefaultPromptPattern if
// nil. promptPrefixRe is optional (nil disables multi-line prompt
// detection).
func New(priority int, promptRe, promptPrefixRe *regexp.Regexp) *Shell {
	if promptRe == nil {
		promptRe = regexp.MustCompile(DefaultPromptPattern)
	}
	return &Shell{priority: priority, promptRe: promptRe, promptPrefixRe: promptPrefixRe, kind: stateNone}
}

func (sh *Shell) Priority() int { return sh.priority }

func (sh *Shell) State() (string, bool) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	switch sh.kind {
	case stateIdle:
		return "idle", true
	case stateRunning:
		return "running", true
	default:
		return "", false
	}
}

// EncodeInput is unimplemented by the reference scene; it always
// declines, leaving the Gateway to fall back to its text+CR default.
func (sh *Shell) EncodeInput(scene.Input) ([]byte, bool) { return nil, false }

// Detect matches the prompt on the cursor line and, on success, enters
// the idle state firm.
func (sh *Shell) Detect(snap snapshot.Snapshot) ([]scene.Event, bool) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	ps, pe, textAfter, ok := sh.matchPromptLocked(snap)
	if !ok {
		return nil, false
	}
	sh.kind = stateIdle
	sh.promptStart, sh.promptEnd = ps, pe
	return []scene.Event{scene.NewInputChanged(true, textAfter)}, true
}

// Continue advances an already-active shell scene.
func (sh *Shell) Continue(snap snapshot.Snapshot) (scene.ContinueResult, bool) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.kind == stateNone {
		return scene.ContinueResult{}, false
	}
	if snap.Alternate {
		// Yield to whatever alternate-screen scene is running; don't
		// lose our place, don't claim firmness.
		return scene.ContinueResult{Events: nil, Firm: false}, true
	}
	if sh.trackingInvalidLocked(snap) {
		sh.kind = stateNone
		return sh.reDetectLocked(snap)
	}
	switch sh.kind {
	case stateIdle:
		return sh.continueIdleLocked(snap)
	case stateRunning:
		return sh.continueRunningLocked(snap)
	default:
		return scene.ContinueResult{}, false
	}
}

func (sh *Shell) continueIdleLocked(snap snapshot.Snapshot) (scene.ContinueResult, bool) {
	ps, pe, textAfter, ok := sh.matchPromptLocked(snap)
	if ok && pe == sh.promptEnd {
		sh.promptStart, sh.promptEnd = ps, pe
		return scene.ContinueResult{
			Events: []scene.Event{scene.NewInputChanged(true, textAfter)},
			Firm:   sh.firmLocked(snap),
		}, true
	}

	// The prompt moved or disappeared: echo the completed prompt line (if
	// still in view) and start collecting output as "running".
	events := []scene.Event{scene.NewInputChanged(false, "")}
	if snap.LinesOffset != nil && sh.promptStart >= *snap.LinesOffset {
		block := snap.CollectLines(sh.promptStart, sh.promptEnd+1)
		events = append(events, scene.NewMessageCreated("block", block, true))
	}
	sh.kind = stateRunning
	sh.emittedUpTo = sh.promptEnd + 1
	return scene.ContinueResult{Events: events, Firm: sh.firmLocked(snap)}, true
}

func (sh *Shell) continueRunningLocked(snap snapshot.Snapshot) (scene.ContinueResult, bool) {
	boundary := snap.End()
	ps, pe, textAfter, newPrompt := sh.matchPromptLocked(snap)
	if newPrompt {
		boundary = ps
	}

	if snap.LinesOffset != nil && sh.emittedUpTo < *snap.LinesOffset {
		sh.emittedUpTo = *snap.LinesOffset // scrolled-out content is unrecoverable
	}

	var events []scene.Event
	if sh.emittedUpTo < boundary {
		content := snap.CollectLines(sh.emittedUpTo, boundary)
		events = append(events, scene.NewMessageCreated("text", content, false))
		sh.emittedUpTo = boundary
	}
	if newPrompt {
		sh.kind = stateIdle
		sh.promptStart, sh.promptEnd = ps, pe
		events = append(events, scene.NewInputChanged(true, textAfter))
	}
	return scene.ContinueResult{Events: events, Firm: sh.firmLocked(snap)}, true
}

// trackingInvalidLocked reports whether tracking loss, or scrollback
// having advanced past positions this scene depends on, makes the
// current state unusable.
func (sh *Shell) trackingInvalidLocked(snap snapshot.Snapshot) bool {
	if snap.LinesOffset == nil {
		return true
	}
	var required int64
	switch sh.kind {
	case stateIdle:
		required = sh.promptEnd + 1
	case stateRunning:
		required = sh.emittedUpTo
	default:
		return false
	}
	return snap.End() < required
}

// reDetectLocked attempts detection within the same snapshot that
// triggered a tracking-invalid reset.
func (sh *Shell) reDetectLocked(snap snapshot.Snapshot) (scene.ContinueResult, bool) {
	ps, pe, textAfter, ok := sh.matchPromptLocked(snap)
	if !ok {
		return scene.ContinueResult{}, false
	}
	sh.kind = stateIdle
	sh.promptStart, sh.promptEnd = ps, pe
	return scene.ContinueResult{
		Events: []scene.Event{scene.NewInputChanged(true, textAfter)},
		Firm:   sh.firmLocked(snap),
	}, true
}

// matchPromptLocked checks the prompt regex against the cursor line and,
// if promptPrefixRe is configured, whether the line above it forms a
// recognized multi-line prompt. Returns the absolute prompt_start,
// prompt_end, and the text following the matched prompt.
func (sh *Shell) matchPromptLocked(snap snapshot.Snapshot) (promptStart, promptEnd int64, textAfter string, ok bool) {
	idx := snap.CursorLineIndex()
	if idx < 0 {
		return 0, 0, "", false
	}
	text := snap.Lines[idx].Text()
	loc := sh.promptRe.FindStringIndex(text)
	if loc == nil {
		return 0, 0, "", false
	}
	absEnd := snap.AbsoluteLineIndex(idx)
	absStart := absEnd
	if sh.promptPrefixRe != nil && idx > 0 {
		if sh.promptPrefixRe.MatchString(snap.Lines[idx-1].Text()) {
			absStart = snap.AbsoluteLineIndex(idx - 1)
		}
	}
	return absStart, absEnd, text[loc[1]:], true
}

// firmLocked implements the firmness policy: firm as long as the cursor
// is visible and the prompt regex matches the cursor line. A detect path
// requiring the cursor on the last line was explicitly rejected, since
// legitimate completion menus render below the prompt.
func (sh *Shell) firmLocked(snap snapshot.Snapshot) bool {
	if !snap.Cursor.Visible {
		return false
	}
	idx := snap.CursorLineIndex()
	if idx < 0 {
		return false
	}
	return sh.promptRe.MatchString(snap.Lines[idx].Text())
}
