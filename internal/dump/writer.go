// Package dump implements an append-only recording format: a header frame
// followed by a stream of keyframe/delta snapshot frames, with a Writer
// and a Reader. Grounded on the "single owner, mutated only along its
// append path" file-handle discipline of wandb-catnip's
// internal/services/pty.go SetupSession.Buffer, adapted from a
// size-capped ring buffer to an unbounded append-only stream.
package dump

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/gofrs/flock"

	"github.com/dcosson/termscene/internal/frame"
	"github.com/dcosson/termscene/internal/snapshot"
)

// DefaultKeyframeIntervalMs is the maximum time a delta chain may span
// before the writer forces a fresh keyframe.
const DefaultKeyframeIntervalMs = 5000

// DefaultKeyframeSizeRatio bounds cumulative delta bytes as a multiple of
// the last keyframe's encoded size before forcing a fresh keyframe.
const DefaultKeyframeSizeRatio = 2.0

// WriterOptions configures keyframe cadence; the zero value selects the
// defaults above.
type WriterOptions struct {
	KeyframeIntervalMs int64
	KeyframeSizeRatio  float64
}

// Writer appends snapshot frames to a dump file. Its methods serialize on
// an internal mutex, so concurrent callers within one process are safe;
// the advisory file lock separately makes a second Writer on the same
// path fail to open.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	lock *flock.Flock
	opts WriterOptions

	prevSnapshot            *snapshot.Snapshot
	lastKeyframeTimestamp   int64
	lastKeyframeSize        int
	cumulativeSinceKeyframe int
	closed                  bool
}

// NewWriter opens path for writing, acquires an advisory lock alongside
// it, and writes the header frame.
func NewWriter(path string, header frame.Header, opts WriterOptions) (*Writer, error) {
	if opts.KeyframeIntervalMs == 0 {
		opts.KeyframeIntervalMs = DefaultKeyframeIntervalMs
	}
	if opts.KeyframeSizeRatio == 0 {
		opts.KeyframeSizeRatio = DefaultKeyframeSizeRatio
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("dump: acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("dump: %s is already open for writing", path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("dump: open %s: %w", path, err)
	}

	w := &Writer{file: f, buf: bufio.NewWriter(f), lock: lock, opts: opts}
	if err := w.writeFrame(frame.KindHeader, 0, header); err != nil {
		f.Close()
		lock.Unlock()
		return nil, err
	}
	return w, nil
}

// WriteSnapshot appends snap, choosing keyframe vs. delta encoding based
// on the interval/size-ratio policy.
func (w *Writer) WriteSnapshot(snap snapshot.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("dump: write to closed writer")
	}

	ts := float64(snap.Timestamp)
	useKeyframe := w.prevSnapshot == nil
	var delta *snapshot.Delta

	if !useKeyframe {
		tooOld := snap.Timestamp-w.lastKeyframeTimestamp >= w.opts.KeyframeIntervalMs
		tooBig := float64(w.cumulativeSinceKeyframe) > w.opts.KeyframeSizeRatio*float64(w.lastKeyframeSize)
		if !tooOld && !tooBig {
			delta = snapshot.ComputeDiff(*w.prevSnapshot, snap)
		}
		if delta == nil {
			useKeyframe = true
		}
	}

	if useKeyframe {
		n, err := w.writeFrameSized(frame.KindKeyframe, ts, snap)
		if err != nil {
			return err
		}
		w.lastKeyframeTimestamp = snap.Timestamp
		w.lastKeyframeSize = n
		w.cumulativeSinceKeyframe = 0
	} else {
		n, err := w.writeFrameSized(frame.KindDelta, ts, *delta)
		if err != nil {
			return err
		}
		w.cumulativeSinceKeyframe += n
	}

	cloned := snap.Clone()
	w.prevSnapshot = &cloned
	return nil
}

func (w *Writer) writeFrame(kind frame.Kind, ts float64, v any) error {
	_, err := w.writeFrameSized(kind, ts, v)
	return err
}

func (w *Writer) writeFrameSized(kind frame.Kind, ts float64, v any) (int, error) {
	b, err := frame.Encode(kind, ts, v)
	if err != nil {
		return 0, err
	}
	if _, err := w.buf.Write(b); err != nil {
		return 0, fmt.Errorf("dump: write frame: %w", err)
	}
	return len(b), nil
}

// Flush writes any buffered bytes to disk.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("dump: flush: %w", err)
	}
	return nil
}

// End flushes and closes the writer, releasing the advisory lock.
func (w *Writer) End() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	w.lock.Unlock()
	if flushErr != nil {
		return fmt.Errorf("dump: flush on close: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("dump: close: %w", closeErr)
	}
	return nil
}
