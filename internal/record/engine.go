package record

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dcosson/termscene/internal/dump"
	"github.com/dcosson/termscene/internal/frame"
	"github.com/dcosson/termscene/internal/snapshot"
	"github.com/dcosson/termscene/internal/vt"
)

// ErrTimeout is returned when a wait step's condition does not hold
// before its timeout_ms elapses.
type ErrTimeout struct {
	Step int
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("record: wait step %d timed out", e.Step)
}

const inputWriteTimeout = 5 * time.Second

// Engine drives a Script against a headless PTY, writing every captured
// snapshot to a dump file. Grounded on internal/session/virtualterminal
// for the PTY/emulator plumbing the record engine reuses via the vt
// package, generalized from an interactively-driven terminal to a
// script-driven one with no channel wired.
type Engine struct {
	script *Script
	vt     *vt.VT
	writer *dump.Writer
	now    func() int64
}

// Run parses nothing itself; callers build a Script via ParseScript, then
// call Run with the dump path to write to. It spawns the command, drives
// every step in order, and returns the number of snapshots written.
func Run(script *Script, dumpPath string) (int, error) {
	e := &Engine{script: script, now: func() int64 { return time.Now().UnixMilli() }}
	return e.run(dumpPath)
}

func (e *Engine) run(dumpPath string) (int, error) {
	e.vt = vt.New(vt.Config{
		Cols:       e.script.Cols,
		Rows:       e.script.Rows,
		Scrollback: e.script.Scrollback,
		Now:        e.now,
	})
	defer e.vt.Dispose()

	if err := e.vt.StartPTY(e.script.Command[0], e.script.Command[1:], e.script.Cols, e.script.Rows, e.script.Env); err != nil {
		return 0, fmt.Errorf("record: start command: %w", err)
	}

	header := frame.Header{
		Cols:       e.script.Cols,
		Rows:       e.script.Rows,
		Scrollback: e.script.Scrollback,
		Command:    e.script.Command[0],
		Args:       e.script.Command[1:],
		StartedMs:  e.now(),
	}
	w, err := dump.NewWriter(dumpPath, header, dump.WriterOptions{})
	if err != nil {
		return 0, fmt.Errorf("record: open dump: %w", err)
	}
	e.writer = w
	defer e.writer.End()

	count := 0
	for i, step := range e.script.Steps {
		switch step.Kind {
		case StepInput:
			if _, err := e.vt.WriteInput([]byte(step.Input), inputWriteTimeout); err != nil {
				return count, fmt.Errorf("record: step %d: write input: %w", i, err)
			}
		case StepWait:
			if err := e.wait(i, step.Wait); err != nil {
				return count, err
			}
		case StepSnapshot:
			if err := e.snapshot(i); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

// wait polls the current emulator snapshot at poll_ms intervals until the
// condition holds or timeout_ms elapses.
func (e *Engine) wait(stepIndex int, cond WaitCond) error {
	var contentRe *regexp.Regexp
	if cond.Content != "" {
		re, err := regexp.Compile(cond.Content)
		if err != nil {
			return fmt.Errorf("record: step %d: compile wait content regex: %w", stepIndex, err)
		}
		contentRe = re
	}

	deadline := time.Now().Add(time.Duration(cond.TimeoutMs) * time.Millisecond)
	poll := time.Duration(cond.PollMs) * time.Millisecond

	var stableSince time.Time
	var lastStable *snapshot.Snapshot

	for {
		snap := e.vt.TakeSnapshot()

		if waitConditionHolds(cond, contentRe, snap, &stableSince, &lastStable) {
			return nil
		}
		if time.Now().After(deadline) {
			return &ErrTimeout{Step: stepIndex}
		}
		time.Sleep(poll)
	}
}

func waitConditionHolds(cond WaitCond, contentRe *regexp.Regexp, snap snapshot.Snapshot, stableSince *time.Time, lastStable **snapshot.Snapshot) bool {
	switch {
	case contentRe != nil:
		return contentRe.MatchString(screenText(snap))
	case cond.StableMs > 0:
		if *lastStable != nil && snap.Equal(**lastStable) {
			return !stableSince.IsZero() && time.Since(*stableSince) >= time.Duration(cond.StableMs)*time.Millisecond
		}
		s := snap
		*lastStable = &s
		*stableSince = time.Now()
		return false
	case cond.Cursor != nil:
		return snap.Cursor.Visible == cond.Cursor.Visible
	default:
		return true
	}
}

func screenText(snap snapshot.Snapshot) string {
	texts := make([]string, len(snap.Lines))
	for i, l := range snap.Lines {
		texts[i] = l.Text()
	}
	return strings.Join(texts, "\n")
}

// snapshot flushes the emulator, takes an immediate snapshot, stamps its
// timestamp with 1000*stepIndex for determinism, and writes it to the
// dump.
func (e *Engine) snapshot(stepIndex int) error {
	e.vt.Flush()
	snap := e.vt.TakeSnapshot()
	snap.Timestamp = int64(1000 * stepIndex)
	return e.writer.WriteSnapshot(snap)
}
