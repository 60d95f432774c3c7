package scene

import "github.com/dcosson/termscene/internal/snapshot"

// ContinueResult is returned by an active Scene's Continue method.
type ContinueResult struct {
	Events []Event
	Firm   bool
}

// ProcessResult is the outcome of a Composite's top-level dispatch.
type ProcessResult struct {
	Events []Event
	Firm   bool
}

// Scene is the contract every scene implementation satisfies.
type Scene interface {
	// Priority orders scenes ascending; lower values are tried first.
	Priority() int

	// State returns a diagnostic label and whether the scene is
	// currently active (false means the label is meaningless / "null").
	State() (state string, active bool)

	// Detect performs a stateless check against snap. ok=false means
	// no match ("null").
	Detect(snap snapshot.Snapshot) (events []Event, ok bool)

	// Continue performs a stateful check for an already-active scene.
	// ok=false means the scene releases ("null").
	Continue(snap snapshot.Snapshot) (result ContinueResult, ok bool)

	// EncodeInput translates structured input into PTY bytes. ok=false
	// means the scene declines to handle this input.
	EncodeInput(in Input) (b []byte, ok bool)
}
