package dump

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dcosson/termscene/internal/frame"
	"github.com/dcosson/termscene/internal/snapshot"
)

func line(s string) snapshot.RichLine { return snapshot.NewPlainLine(s) }

func snap(ts int64, offset int64, lines ...string) snapshot.Snapshot {
	rl := make([]snapshot.RichLine, len(lines))
	for i, s := range lines {
		rl[i] = line(s)
	}
	return snapshot.Snapshot{
		Lines:       rl,
		Cursor:      snapshot.Cursor{X: 0, Y: len(lines) - 1, Visible: true},
		Cols:        80,
		Rows:        24,
		LinesOffset: snapshot.Offset(offset),
		Timestamp:   ts,
	}
}

func writeTestDump(t *testing.T, path string, snaps []snapshot.Snapshot) {
	t.Helper()
	w, err := NewWriter(path, frame.Header{Cols: 80, Rows: 24, Command: "bash"}, WriterOptions{})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, s := range snaps {
		if err := w.WriteSnapshot(s); err != nil {
			t.Fatalf("WriteSnapshot: %v", err)
		}
	}
	if err := w.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
}

func TestWriterFirstSnapshotIsAlwaysKeyframe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "d.dump")
	writeTestDump(t, path, []snapshot.Snapshot{snap(0, 0, "hello")})

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if stats := r.Stats(); stats.Keyframes != 1 || stats.Deltas != 0 {
		t.Fatalf("expected 1 keyframe 0 deltas, got %+v", stats)
	}
}

func TestWriterUsesDeltasWhenPossible(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "d.dump")
	writeTestDump(t, path, []snapshot.Snapshot{
		snap(0, 0, "one"),
		snap(10, 0, "one", "two"),
		snap(20, 0, "one", "two", "three"),
	})

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	stats := r.Stats()
	if stats.Keyframes != 1 {
		t.Fatalf("expected exactly 1 keyframe, got %d", stats.Keyframes)
	}
	if stats.Deltas != 2 {
		t.Fatalf("expected 2 deltas, got %d", stats.Deltas)
	}
}

func TestWriterForcesKeyframeAfterInterval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "d.dump")
	writeTestDump(t, path, []snapshot.Snapshot{
		snap(0, 0, "one"),
		snap(DefaultKeyframeIntervalMs+1, 1, "one", "two"),
	})

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if stats := r.Stats(); stats.Keyframes != 2 {
		t.Fatalf("expected forced keyframe after interval elapsed, got %+v", stats)
	}
}

func TestWriterForcesKeyframeOnTrackingLoss(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "d.dump")
	lost := snap(10, 0, "one")
	lost.LinesOffset = nil
	writeTestDump(t, path, []snapshot.Snapshot{
		snap(0, 0, "one"),
		lost,
	})

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if stats := r.Stats(); stats.Keyframes != 2 {
		t.Fatalf("expected keyframe when ComputeDiff returns nil (tracking loss), got %+v", stats)
	}
}

func TestReaderSnapshotsReplaysFullSequence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "d.dump")
	snaps := []snapshot.Snapshot{
		snap(0, 0, "one"),
		snap(10, 0, "one", "two"),
		snap(20, 0, "one", "two", "three"),
	}
	writeTestDump(t, path, snaps)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var got []snapshot.Snapshot
	for entry := range r.Snapshots(nil) {
		got = append(got, entry.Snapshot)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	for i, s := range snaps {
		if !got[i].Equal(s) {
			t.Fatalf("entry %d mismatch: got %+v want %+v", i, got[i], s)
		}
	}
}

func TestReaderSnapshotsFromMidpointReplaysFromKeyframe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "d.dump")
	snaps := []snapshot.Snapshot{
		snap(0, 0, "one"),
		snap(10, 0, "one", "two"),
		snap(20, 0, "one", "two", "three"),
	}
	writeTestDump(t, path, snaps)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	from := int64(15)
	var got []snapshot.Snapshot
	for entry := range r.Snapshots(&from) {
		got = append(got, entry.Snapshot)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry at/after ts=15, got %d", len(got))
	}
	if !got[0].Equal(snaps[2]) {
		t.Fatalf("expected the ts=20 snapshot, got %+v", got[0])
	}
}

func TestReaderSnapshotsStopsEarlyOnFalseYield(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "d.dump")
	writeTestDump(t, path, []snapshot.Snapshot{
		snap(0, 0, "one"),
		snap(10, 0, "one", "two"),
		snap(20, 0, "one", "two", "three"),
	})
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	count := 0
	for range r.Snapshots(nil) {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 entry before early stop, got %d", count)
	}
}

func TestSnapshotNearestTo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "d.dump")
	snaps := []snapshot.Snapshot{
		snap(0, 0, "one"),
		snap(10, 0, "one", "two"),
		snap(20, 0, "one", "two", "three"),
	}
	writeTestDump(t, path, snaps)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	entry, ok := r.SnapshotNearestTo(15)
	if !ok {
		t.Fatalf("expected a match at ts=15")
	}
	if !entry.Snapshot.Equal(snaps[1]) {
		t.Fatalf("expected the ts=10 snapshot, got %+v", entry.Snapshot)
	}

	if _, ok := r.SnapshotNearestTo(-1); ok {
		t.Fatalf("expected no match preceding the first snapshot")
	}
}

func TestOpenRejectsMissingHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "no-header.dump")
	b, _ := frame.Encode(frame.KindKeyframe, 0, snap(0, 0, "x"))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Fatalf("expected error opening a dump with no header frame")
	}
}

func TestOpenRejectsDeltaBeforeKeyframe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.dump")
	h, _ := frame.Encode(frame.KindHeader, 0, frame.Header{Cols: 80})
	d, _ := frame.Encode(frame.KindDelta, 1, snapshot.Delta{})
	var buf []byte
	buf = append(buf, h...)
	buf = append(buf, d...)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Fatalf("expected error opening a dump with a delta before any keyframe")
	}
}

func TestWriterRefusesSecondWriterOnSamePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "locked.dump")
	w1, err := NewWriter(path, frame.Header{}, WriterOptions{})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w1.End()

	if _, err := NewWriter(path, frame.Header{}, WriterOptions{}); err == nil {
		t.Fatalf("expected second writer on the same path to fail to acquire the lock")
	}
}
