package dump

import (
	"fmt"
	"iter"
	"os"
	"sort"

	"github.com/dcosson/termscene/internal/frame"
	"github.com/dcosson/termscene/internal/snapshot"
)

type indexEntry struct {
	offset    int
	kind      frame.Kind
	timestamp int64
}

// Duration bounds the timestamps present in a dump.
type Duration struct {
	Start, End int64
}

// Stats summarizes a dump's contents.
type Stats struct {
	Keyframes int
	Deltas    int
	Duration  *Duration
}

// DeltaSummary describes what a delta frame changed, for callers that
// want to react to changes without inspecting the full snapshot.
type DeltaSummary struct {
	ChangedLines []int
	Scrolled     int64
	CursorMoved  bool
}

// SnapshotEntry is one item yielded by Reader.Snapshots.
type SnapshotEntry struct {
	Snapshot     snapshot.Snapshot
	DeltaSummary *DeltaSummary // nil for keyframes
}

// Reader loads a dump file fully into memory and indexes its frames for
// binary-searchable, lazily-replayed snapshot iteration (§4.7).
type Reader struct {
	data    []byte
	header  frame.Header
	entries []indexEntry
}

// Open loads and indexes path. The first frame must be a header; any
// delta frame preceding the first keyframe is treated as corruption.
func Open(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dump: read %s: %w", path, err)
	}

	f, next, err := frame.ParseAt(data, 0)
	if err != nil || f.Kind != frame.KindHeader {
		return nil, fmt.Errorf("dump: no header")
	}
	header, err := f.DecodeHeader()
	if err != nil {
		return nil, fmt.Errorf("dump: decode header: %w", err)
	}

	r := &Reader{data: data, header: header}
	sawKeyframe := false
	offset := next
	for {
		ef, nextOffset, err := frame.ParseAt(data, offset)
		if err != nil {
			break // ErrNoFrame: clean EOF or trailing garbage, stop per §4.5
		}
		switch ef.Kind {
		case frame.KindKeyframe:
			sawKeyframe = true
		case frame.KindDelta:
			if !sawKeyframe {
				return nil, fmt.Errorf("dump: corrupt file: delta frame precedes any keyframe")
			}
		case frame.KindHeader:
			return nil, fmt.Errorf("dump: corrupt file: unexpected header frame after the first")
		}
		r.entries = append(r.entries, indexEntry{offset: offset, kind: ef.Kind, timestamp: int64(ef.Timestamp)})
		offset = nextOffset
	}
	return r, nil
}

// Header returns the dump's header metadata.
func (r *Reader) Header() frame.Header { return r.header }

// Stats summarizes keyframe/delta counts and the timestamp range.
func (r *Reader) Stats() Stats {
	s := Stats{}
	for _, e := range r.entries {
		if e.kind == frame.KindKeyframe {
			s.Keyframes++
		} else {
			s.Deltas++
		}
	}
	if len(r.entries) > 0 {
		s.Duration = &Duration{Start: r.entries[0].timestamp, End: r.entries[len(r.entries)-1].timestamp}
	}
	return s
}

// keyframeAtOrBefore walks backward from idx to the nearest preceding
// (inclusive) keyframe index. Index 0 is always a keyframe by the
// Writer's invariant (enforced on Open).
func (r *Reader) keyframeAtOrBefore(idx int) int {
	for idx > 0 && r.entries[idx].kind != frame.KindKeyframe {
		idx--
	}
	return idx
}

func (r *Reader) decodeEntry(idx int, base snapshot.Snapshot) (snapshot.Snapshot, *DeltaSummary, error) {
	e := r.entries[idx]
	f, _, err := frame.ParseAt(r.data, e.offset)
	if err != nil {
		return snapshot.Snapshot{}, nil, fmt.Errorf("dump: re-parse frame at %d: %w", e.offset, err)
	}
	if e.kind == frame.KindKeyframe {
		snap, err := f.DecodeKeyframe()
		return snap, nil, err
	}
	d, err := f.DecodeDelta()
	if err != nil {
		return snapshot.Snapshot{}, nil, err
	}
	snap := snapshot.ApplyDiff(base, d, e.timestamp)
	return snap, deltaSummary(d), nil
}

func deltaSummary(d snapshot.Delta) *DeltaSummary {
	lines := make([]int, 0, len(d.Lines))
	for _, e := range d.Lines {
		lines = append(lines, e.Index)
	}
	return &DeltaSummary{
		ChangedLines: lines,
		Scrolled:     d.Shift,
		CursorMoved:  d.Cursor != nil,
	}
}

// Snapshots returns a lazy sequence of entries. With from == nil it
// starts at the beginning; otherwise it locates the first entry at or
// after *from (binary search), replays forward from its nearest
// preceding keyframe, and yields only entries at or after *from.
func (r *Reader) Snapshots(from *int64) iter.Seq[SnapshotEntry] {
	return func(yield func(SnapshotEntry) bool) {
		if len(r.entries) == 0 {
			return
		}
		lowerBound := 0
		if from != nil {
			lowerBound = sort.Search(len(r.entries), func(i int) bool {
				return r.entries[i].timestamp >= *from
			})
			if lowerBound >= len(r.entries) {
				return
			}
		}
		replayStart := r.keyframeAtOrBefore(lowerBound)

		var base snapshot.Snapshot
		for i := replayStart; i < len(r.entries); i++ {
			snap, summary, err := r.decodeEntry(i, base)
			if err != nil {
				return
			}
			base = snap
			if from != nil && r.entries[i].timestamp < *from {
				continue
			}
			if !yield(SnapshotEntry{Snapshot: snap, DeltaSummary: summary}) {
				return
			}
		}
	}
}

// SnapshotNearestTo returns the last entry with timestamp <= ts, replayed
// from its nearest preceding keyframe. The second return is false if ts
// precedes the first snapshot.
func (r *Reader) SnapshotNearestTo(ts int64) (SnapshotEntry, bool) {
	idx := sort.Search(len(r.entries), func(i int) bool {
		return r.entries[i].timestamp > ts
	}) - 1
	if idx < 0 {
		return SnapshotEntry{}, false
	}
	replayStart := r.keyframeAtOrBefore(idx)

	var base snapshot.Snapshot
	var result SnapshotEntry
	for i := replayStart; i <= idx; i++ {
		snap, summary, err := r.decodeEntry(i, base)
		if err != nil {
			return SnapshotEntry{}, false
		}
		base = snap
		result = SnapshotEntry{Snapshot: snap, DeltaSummary: summary}
	}
	return result, true
}
