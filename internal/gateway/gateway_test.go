package gateway

import (
	"errors"
	"sync"
	"testing"

	"github.com/dcosson/termscene/internal/scene"
	"github.com/dcosson/termscene/internal/snapshot"
)

type fakeChannel struct {
	mu       sync.Mutex
	started  bool
	stopped  bool
	received []Update
	startErr error
	sendFn   func(scene.Input)
}

func (f *fakeChannel) Start(send func(scene.Input)) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.started = true
	f.sendFn = send
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) Stop() error {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) Receive(u Update) error {
	f.mu.Lock()
	f.received = append(f.received, u)
	f.mu.Unlock()
	return nil
}

type erroringChannel struct{ fakeChannel }

func (e *erroringChannel) Receive(Update) error { return errors.New("boom") }

func blankSnap() snapshot.Snapshot {
	return snapshot.Snapshot{Lines: []snapshot.RichLine{snapshot.NewPlainLine("x")}}
}

func TestUpdateBroadcastsToAllChannels(t *testing.T) {
	g := New(nil)
	c1, c2 := &fakeChannel{}, &fakeChannel{}
	if err := g.ReplaceChannels([]Channel{c1, c2}); err != nil {
		t.Fatalf("ReplaceChannels: %v", err)
	}
	g.Update(blankSnap())

	if len(c1.received) != 1 || len(c2.received) != 1 {
		t.Fatalf("expected both channels to receive the update, got %d %d", len(c1.received), len(c2.received))
	}
}

func TestOneChannelFailureDoesNotBlockOthers(t *testing.T) {
	g := New(nil)
	bad := &erroringChannel{}
	good := &fakeChannel{}
	if err := g.ReplaceChannels([]Channel{bad, good}); err != nil {
		t.Fatalf("ReplaceChannels: %v", err)
	}
	g.Update(blankSnap())

	if len(good.received) != 1 {
		t.Fatalf("expected the good channel to still receive the update, got %d", len(good.received))
	}
}

func TestReplaceChannelsStopsOldAndStartsNewInOrder(t *testing.T) {
	g := New(nil)
	old := &fakeChannel{}
	if err := g.ReplaceChannels([]Channel{old}); err != nil {
		t.Fatalf("ReplaceChannels: %v", err)
	}
	newCh := &fakeChannel{}
	if err := g.ReplaceChannels([]Channel{newCh}); err != nil {
		t.Fatalf("ReplaceChannels: %v", err)
	}
	if !old.stopped {
		t.Fatalf("expected old channel to be stopped")
	}
	if !newCh.started {
		t.Fatalf("expected new channel to be started")
	}
}

func TestReplaceChannelsRollsBackOnStartFailure(t *testing.T) {
	g := New(nil)
	ok := &fakeChannel{}
	failing := &fakeChannel{startErr: errors.New("nope")}
	err := g.ReplaceChannels([]Channel{ok, failing})
	if err == nil {
		t.Fatalf("expected an error when the second channel fails to start")
	}
	if !ok.stopped {
		t.Fatalf("expected the already-started channel to be rolled back (stopped)")
	}

	// Gateway should now have an empty channel set; an update reaches nobody.
	g.Update(blankSnap())
	if len(ok.received) != 0 {
		t.Fatalf("expected no channels active after rollback, but ok channel received an update")
	}
}

func TestReplaceScenesBroadcastsNullStateTransition(t *testing.T) {
	sawTransition := false
	ch := &fakeChannel{}
	g := New(nil)
	g.ReplaceChannels([]Channel{ch})

	active := &fakeScene{priority: 1, label: "active", firstMatch: true}
	g.ReplaceScenes(scene.NewComposite(0, []scene.Scene{active}))
	g.Update(blankSnap()) // activates the scene, lastSnap recorded

	g.ReplaceScenes(nil) // discard composite
	for _, u := range ch.received {
		for _, e := range u.Events {
			if e.Kind == scene.SceneStateChanged {
				data := e.Data.(scene.SceneStateChangedData)
				if !data.HasState {
					sawTransition = true
				}
			}
		}
	}
	if !sawTransition {
		t.Fatalf("expected a scene_state_changed{state: null} broadcast after ReplaceScenes(nil)")
	}
}

func TestSendFallsBackToTextPlusCR(t *testing.T) {
	var written []byte
	g := New(func(b []byte) { written = append(written, b...) })
	ch := &fakeChannel{}
	g.ReplaceChannels([]Channel{ch})

	ch.sendFn(scene.Input{Kind: scene.InputText, Text: "hello"})
	if string(written) != "hello\r" {
		t.Fatalf("expected fallback text+CR, got %q", written)
	}
}

func TestSendDropsSelectInputWithNoHandler(t *testing.T) {
	var written []byte
	g := New(func(b []byte) { written = append(written, b...) })
	ch := &fakeChannel{}
	g.ReplaceChannels([]Channel{ch})

	ch.sendFn(scene.Input{Kind: scene.InputSelect, Index: 2})
	if len(written) != 0 {
		t.Fatalf("expected select input with no scene handler to be silently dropped, got %q", written)
	}
}

// fakeScene detects once (on its first Process call) and then stays firm.
type fakeScene struct {
	priority   int
	label      string
	firstMatch bool
	active     bool
}

func (f *fakeScene) Priority() int         { return f.priority }
func (f *fakeScene) State() (string, bool) { return f.label, f.active }

func (f *fakeScene) Detect(snapshot.Snapshot) ([]scene.Event, bool) {
	if !f.firstMatch {
		return nil, false
	}
	f.active = true
	return nil, true
}

func (f *fakeScene) Continue(snapshot.Snapshot) (scene.ContinueResult, bool) {
	if !f.active {
		return scene.ContinueResult{}, false
	}
	return scene.ContinueResult{Firm: true}, true
}

func (f *fakeScene) EncodeInput(scene.Input) ([]byte, bool) { return nil, false }
