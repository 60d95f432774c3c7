// Package frame implements the on-disk frame envelope: a 1-byte type
// tag, 8-byte big-endian IEEE-754 timestamp, 4-byte big-endian length,
// then a self-describing payload. h2's own wire format is YAML/line-
// oriented, so there is no binary envelope to adapt directly. Payloads
// are encoded with encoding/gob, the stdlib's self-describing binary
// codec, since nothing in the pack needs a custom wire format for this.
package frame

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"math"

	"github.com/dcosson/termscene/internal/snapshot"
)

// Kind is the 1-byte frame type tag.
type Kind uint8

const (
	KindHeader   Kind = 1
	KindKeyframe Kind = 2
	KindDelta    Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindKeyframe:
		return "keyframe"
	case KindDelta:
		return "delta"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// envelopeSize is the fixed-size portion preceding the payload: 1 tag
// byte + 8 timestamp bytes + 4 length bytes.
const envelopeSize = 1 + 8 + 4

// ErrNoFrame means the next bytes do not form a complete, recognized
// frame (truncated file or unknown type tag). This is not treated as
// corruption; callers simply stop reading.
var ErrNoFrame = errors.New("frame: no frame at offset (truncated or unrecognized)")

// Header is the payload of a KindHeader frame: static metadata about the
// recording, written once at the start of a dump.
type Header struct {
	Cols, Rows int
	Scrollback int
	Command    string
	Args       []string
	StartedMs  int64
}

// Frame is a decoded envelope with a lazily-decoded, cached payload.
type Frame struct {
	Kind      Kind
	Timestamp float64
	Payload   []byte // raw encoded payload bytes

	decoded any
	decErr  error
	done    bool
}

// Encode serializes kind/timestamp/v into a complete frame's bytes.
func Encode(kind Kind, timestamp float64, v any) ([]byte, error) {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(v); err != nil {
		return nil, fmt.Errorf("frame: encode payload: %w", err)
	}
	return EncodeRaw(kind, timestamp, payload.Bytes()), nil
}

// EncodeRaw assembles an envelope around an already-encoded payload.
func EncodeRaw(kind Kind, timestamp float64, payload []byte) []byte {
	out := make([]byte, envelopeSize+len(payload))
	out[0] = byte(kind)
	binary.BigEndian.PutUint64(out[1:9], math.Float64bits(timestamp))
	binary.BigEndian.PutUint32(out[9:13], uint32(len(payload)))
	copy(out[envelopeSize:], payload)
	return out
}

// ParseAt reads one frame starting at offset within data. It returns the
// frame, the offset of the byte immediately following it, and an error.
// A truncated envelope/payload or an unrecognized type tag yields
// (nil, offset, ErrNoFrame) rather than an error describing corruption,
// since this case is not fatal.
func ParseAt(data []byte, offset int) (*Frame, int, error) {
	if offset < 0 || offset+envelopeSize > len(data) {
		return nil, offset, ErrNoFrame
	}
	kind := Kind(data[offset])
	switch kind {
	case KindHeader, KindKeyframe, KindDelta:
	default:
		return nil, offset, ErrNoFrame
	}
	ts := math.Float64frombits(binary.BigEndian.Uint64(data[offset+1 : offset+9]))
	length := binary.BigEndian.Uint32(data[offset+9 : offset+13])
	payloadStart := offset + envelopeSize
	payloadEnd := payloadStart + int(length)
	if payloadEnd < payloadStart || payloadEnd > len(data) {
		return nil, offset, ErrNoFrame
	}
	f := &Frame{
		Kind:      kind,
		Timestamp: ts,
		Payload:   data[payloadStart:payloadEnd],
	}
	return f, payloadEnd, nil
}

// decode runs fn on the first call to decode the payload, caching the
// result (and any error) for subsequent calls.
func (f *Frame) decode(fn func() (any, error)) (any, error) {
	if !f.done {
		f.decoded, f.decErr = fn()
		f.done = true
	}
	return f.decoded, f.decErr
}

func gobDecode(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}

// DecodeHeader decodes a KindHeader frame's payload.
func (f *Frame) DecodeHeader() (Header, error) {
	if f.Kind != KindHeader {
		return Header{}, fmt.Errorf("frame: not a header frame (kind=%s)", f.Kind)
	}
	v, err := f.decode(func() (any, error) {
		var h Header
		if err := gobDecode(f.Payload, &h); err != nil {
			return nil, fmt.Errorf("frame: decode header: %w", err)
		}
		return h, nil
	})
	if err != nil {
		return Header{}, err
	}
	return v.(Header), nil
}

// DecodeKeyframe decodes a KindKeyframe frame's payload.
func (f *Frame) DecodeKeyframe() (snapshot.Snapshot, error) {
	if f.Kind != KindKeyframe {
		return snapshot.Snapshot{}, fmt.Errorf("frame: not a keyframe frame (kind=%s)", f.Kind)
	}
	v, err := f.decode(func() (any, error) {
		var s snapshot.Snapshot
		if err := gobDecode(f.Payload, &s); err != nil {
			return nil, fmt.Errorf("frame: decode keyframe: %w", err)
		}
		return s, nil
	})
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	return v.(snapshot.Snapshot), nil
}

// DecodeDelta decodes a KindDelta frame's payload.
func (f *Frame) DecodeDelta() (snapshot.Delta, error) {
	if f.Kind != KindDelta {
		return snapshot.Delta{}, fmt.Errorf("frame: not a delta frame (kind=%s)", f.Kind)
	}
	v, err := f.decode(func() (any, error) {
		var d snapshot.Delta
		if err := gobDecode(f.Payload, &d); err != nil {
			return nil, fmt.Errorf("frame: decode delta: %w", err)
		}
		return d, nil
	})
	if err != nil {
		return snapshot.Delta{}, err
	}
	return v.(snapshot.Delta), nil
}
