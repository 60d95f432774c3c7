// Package gateway wires a composite scene to a set of output channels.
// Grounded on internal/bridgeservice/service.go's Service (owns a set of
// receivers, multiplexes inbound messages across them, replace/rollback-
// on-failure semantics), generalized from Telegram/macOS-specific bridges
// to a generic Channel contract.
package gateway

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/dcosson/termscene/internal/scene"
	"github.com/dcosson/termscene/internal/snapshot"
)

// Update is delivered to every channel on each processed snapshot.
type Update struct {
	Snapshot snapshot.Snapshot
	Events   []scene.Event
}

// Channel is the external output-sink contract: start/stop/receive, plus
// a send callback handed to Start for channel-originated input.
type Channel interface {
	Start(send func(scene.Input)) error
	Stop() error
	Receive(update Update) error
}

type channelEntry struct {
	id uuid.UUID
	ch Channel
}

// Gateway owns an optional composite scene and an ordered set of
// channels. Not safe for concurrent Update calls interleaved with
// ReplaceScenes/ReplaceChannels from multiple goroutines beyond what its
// internal mutex serializes: callers should drive it from one place
// (typically the virtual terminal's on_change callback).
type Gateway struct {
	mu         sync.Mutex
	composite  *scene.Composite
	channels   []channelEntry
	lastSnap   *snapshot.Snapshot
	writeToPTY func([]byte)
}

// New creates a Gateway. writeToPTY is called with bytes the active
// scene (or the text+CR fallback) wants forwarded to the wrapped
// program; it may be nil in tests that don't exercise input.
func New(writeToPTY func([]byte)) *Gateway {
	return &Gateway{writeToPTY: writeToPTY}
}

func (g *Gateway) stateLocked() (string, bool) {
	if g.composite == nil {
		return "", false
	}
	return g.composite.State()
}

// Update processes a new snapshot: runs the composite, computes a
// scene_state_changed diff, and broadcasts to every channel.
func (g *Gateway) Update(snap snapshot.Snapshot) {
	g.mu.Lock()
	prevState, prevActive := g.stateLocked()

	var events []scene.Event
	if g.composite != nil {
		res := g.composite.Process(snap)
		events = append(events, res.Events...)
	}

	newState, newActive := g.stateLocked()
	if newState != prevState || newActive != prevActive {
		events = append(events, scene.NewSceneStateChanged(newState, newActive))
	}

	cloned := snap.Clone()
	g.lastSnap = &cloned
	channels := append([]channelEntry(nil), g.channels...)
	g.mu.Unlock()

	g.broadcast(channels, Update{Snapshot: snap, Events: events})
}

func (g *Gateway) broadcast(channels []channelEntry, update Update) {
	for _, entry := range channels {
		if err := entry.ch.Receive(update); err != nil {
			log.Printf("gateway: channel %s receive failed: %v", entry.id, err)
		}
	}
}

// ReplaceScenes discards the current composite scene. If the prior state
// was non-null and a last snapshot exists, a single scene_state_changed
// to null is broadcast so channels observe the transition.
func (g *Gateway) ReplaceScenes(composite *scene.Composite) {
	g.mu.Lock()
	prevState, prevActive := g.stateLocked()
	g.composite = composite
	last := g.lastSnap
	channels := append([]channelEntry(nil), g.channels...)
	g.mu.Unlock()

	_ = prevState
	if prevActive && last != nil {
		g.broadcast(channels, Update{
			Snapshot: *last,
			Events:   []scene.Event{scene.NewSceneStateChanged("", false)},
		})
	}
}

// ReplaceChannels stops the current channels, then starts the new ones
// in order. If any Start fails, already-started new channels are stopped
// and the gateway is left with an empty channel set; the error surfaces
// to the caller. ReplaceChannels is fully serialized under the gateway's
// own mutex, so concurrent callers cannot interleave their stop/start
// sequences.
func (g *Gateway) ReplaceChannels(newChannels []Channel) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, entry := range g.channels {
		if err := entry.ch.Stop(); err != nil {
			log.Printf("gateway: channel %s stop failed: %v", entry.id, err)
		}
	}
	g.channels = nil

	var started []channelEntry
	for _, ch := range newChannels {
		if err := ch.Start(g.send); err != nil {
			for _, e := range started {
				if stopErr := e.ch.Stop(); stopErr != nil {
					log.Printf("gateway: rollback stop of channel %s failed: %v", e.id, stopErr)
				}
			}
			return fmt.Errorf("gateway: start channel: %w", err)
		}
		started = append(started, channelEntry{id: uuid.New(), ch: ch})
	}
	g.channels = started
	return nil
}

// send is the callback handed to every channel's Start. It asks the
// active scene to translate in; if it declines, text-variant input falls
// back to content+CR. select input with no handler is silently dropped.
func (g *Gateway) send(in scene.Input) {
	g.mu.Lock()
	composite := g.composite
	writeFn := g.writeToPTY
	g.mu.Unlock()

	if composite != nil {
		if b, ok := composite.EncodeInput(in); ok {
			if writeFn != nil {
				writeFn(b)
			}
			return
		}
	}
	if in.Kind == scene.InputText && writeFn != nil {
		writeFn([]byte(in.Text + "\r"))
	}
}
