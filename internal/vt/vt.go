// Package vt is the virtual terminal: an emulator plus a flush scheduler
// plus change dedup, exposing on_change(snapshot, previous) once pending
// writes settle. Grounded on internal/session/virtualterminal/vt.go's VT
// struct (creack/pty spawn, mutex-guarded emulator writes, PipeOutput
// read loop), generalized from "render to an outer terminal" to "emit
// deduplicated Snapshots".
package vt

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"

	"github.com/dcosson/termscene/internal/emulator"
	"github.com/dcosson/termscene/internal/scheduler"
	"github.com/dcosson/termscene/internal/snapshot"
)

// OnChange is invoked with the newly emitted snapshot and the previous one
// (nil for the very first emission). Panics inside OnChange are trapped
// and logged; they never propagate to the producer.
type OnChange func(curr snapshot.Snapshot, prev *snapshot.Snapshot)

// Config configures a VT.
type Config struct {
	Cols, Rows    int
	Scrollback    int
	DebounceMs    int // default 100
	MaxIntervalMs int // default 300
	OnChange      OnChange
	Now           func() int64 // for tests; defaults to time.Now().UnixMilli
}

// VT owns the emulator, scheduler, and optional child PTY process.
type VT struct {
	mu   sync.Mutex
	emu  *emulator.Emulator
	sch  *scheduler.Scheduler
	onCh OnChange
	now  func() int64

	lastSnapshot *snapshot.Snapshot
	disposed     bool

	captureInFlight bool
	captureNeeded   bool
	gen             int64
	cond            *sync.Cond

	// Optional child process, set by StartPTY.
	Ptm *os.File
	Cmd *exec.Cmd
}

// New creates a VT without spawning a child process; Write feeds it bytes
// directly (used by the record engine and tests).
func New(cfg Config) *VT {
	if cfg.DebounceMs == 0 {
		cfg.DebounceMs = 100
	}
	if cfg.MaxIntervalMs == 0 {
		cfg.MaxIntervalMs = 300
	}
	if cfg.Now == nil {
		cfg.Now = func() int64 { return time.Now().UnixMilli() }
	}
	v := &VT{
		emu:  emulator.New(cfg.Cols, cfg.Rows, cfg.Scrollback),
		onCh: cfg.OnChange,
		now:  cfg.Now,
	}
	v.cond = sync.NewCond(&v.mu)
	v.sch = scheduler.New(
		time.Duration(cfg.DebounceMs)*time.Millisecond,
		time.Duration(cfg.MaxIntervalMs)*time.Millisecond,
		v.onFlush,
	)
	return v
}

// StartPTY spawns command under a PTY of the VT's dimensions and starts a
// goroutine piping its output into Write. extraEnv entries are appended to
// the child's environment (os.Environ() plus these). Grounded on
// internal/session/virtualterminal/vt.go's StartPTY/PipeOutput, generalized
// with that file's ExtraEnv handling.
func (v *VT) StartPTY(command string, args []string, cols, rows int, extraEnv map[string]string) error {
	v.Cmd = exec.Command(command, args...)
	if len(extraEnv) > 0 {
		env := os.Environ()
		for k, val := range extraEnv {
			env = append(env, k+"="+val)
		}
		v.Cmd.Env = env
	}
	var err error
	v.Ptm, err = pty.StartWithSize(v.Cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return fmt.Errorf("start command: %w", err)
	}
	go v.pipeOutput()
	return nil
}

func (v *VT) pipeOutput() {
	buf := make([]byte, 4096)
	for {
		n, err := v.Ptm.Read(buf)
		if n > 0 {
			v.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// Write feeds bytes into the emulator and notifies the scheduler. No-op
// after Dispose.
func (v *VT) Write(p []byte) {
	v.mu.Lock()
	if v.disposed {
		v.mu.Unlock()
		return
	}
	v.emu.Write(p)
	v.mu.Unlock()
	v.sch.Notify()
}

// WriteInput writes bytes to the child's PTY (its stdin), with a timeout
// guarding against a hung child that never reads its input. Grounded on
// internal/session/virtualterminal/vt.go's WritePTY.
func (v *VT) WriteInput(p []byte, timeout time.Duration) (int, error) {
	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := v.Ptm.Write(p)
		ch <- result{n, err}
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.n, r.err
	case <-timer.C:
		return 0, fmt.Errorf("vt: write input: timed out after %s", timeout)
	}
}

// Resize changes dimensions. Does not itself trigger a flush.
func (v *VT) Resize(cols, rows int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return
	}
	v.emu.Resize(cols, rows)
	if v.Ptm != nil {
		pty.Setsize(v.Ptm, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	}
}

// TakeSnapshot captures synchronously, bypassing the scheduler and dedup.
func (v *VT) TakeSnapshot() snapshot.Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.emu.Take(v.now())
}

// LastSnapshot returns the most recently emitted (post-dedup) snapshot, or
// nil if none has been emitted yet.
func (v *VT) LastSnapshot() *snapshot.Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.lastSnapshot == nil {
		return nil
	}
	s := v.lastSnapshot.Clone()
	return &s
}

// Flush forces immediate capture of all pending writes and blocks until
// the resulting on_change callback (if any) has run.
func (v *VT) Flush() {
	v.mu.Lock()
	if v.disposed {
		v.mu.Unlock()
		return
	}
	g0 := v.gen
	v.mu.Unlock()

	v.sch.Flush()

	v.mu.Lock()
	captured := v.gen > g0 || v.captureInFlight
	v.mu.Unlock()
	if !captured {
		// No timer was armed and no capture is running: capture directly.
		v.onFlush()
	}

	v.mu.Lock()
	for v.gen <= g0 && !v.disposed {
		v.cond.Wait()
	}
	v.mu.Unlock()
}

// Dispose releases all resources. Further calls are no-ops, and no
// further on_change callbacks will be invoked even if a capture was
// already in flight.
func (v *VT) Dispose() {
	v.mu.Lock()
	v.disposed = true
	v.mu.Unlock()
	v.sch.Dispose()
	v.cond.Broadcast()
	if v.Ptm != nil {
		v.Ptm.Close()
	}
	if v.Cmd != nil && v.Cmd.Process != nil {
		v.Cmd.Process.Kill()
	}
}

// onFlush implements capture-collapse: only one capture runs at a time;
// additional triggers during an in-flight capture collapse into exactly
// one extra run afterward.
func (v *VT) onFlush() {
	v.mu.Lock()
	if v.disposed {
		v.mu.Unlock()
		return
	}
	if v.captureInFlight {
		v.captureNeeded = true
		v.mu.Unlock()
		return
	}
	v.captureInFlight = true
	v.mu.Unlock()

	for {
		v.doCapture()
		v.mu.Lock()
		if !v.captureNeeded || v.disposed {
			v.captureInFlight = false
			v.mu.Unlock()
			return
		}
		v.captureNeeded = false
		v.mu.Unlock()
	}
}

func (v *VT) doCapture() {
	v.mu.Lock()
	if v.disposed {
		v.mu.Unlock()
		return
	}
	curr := v.emu.Take(v.now())
	prev := v.lastSnapshot
	changed := prev == nil || !curr.Equal(*prev)
	if changed {
		cloned := curr.Clone()
		v.lastSnapshot = &cloned
	}
	cb := v.onCh
	v.gen++
	v.cond.Broadcast()
	v.mu.Unlock()

	if changed && cb != nil {
		v.mu.Lock()
		disposed := v.disposed
		v.mu.Unlock()
		if !disposed {
			invokeSafely(cb, curr, prev)
		}
	}
}

// invokeSafely calls cb, trapping and logging any panic so a misbehaving
// consumer never takes down the producer's path.
func invokeSafely(cb OnChange, curr snapshot.Snapshot, prev *snapshot.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("vt: on_change callback panicked: %v", r)
		}
	}()
	cb(curr, prev)
}
