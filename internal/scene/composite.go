package scene

import (
	"sort"
	"sync"

	"github.com/dcosson/termscene/internal/snapshot"
)

// Composite orchestrates an ordered set of scenes: continuation of an
// active scene, preemption scanning on tentative results, and clean
// detection when no scene is active. It itself satisfies Scene, so a
// Composite can be nested inside another.
type Composite struct {
	priority int

	mu        sync.Mutex
	scenes    []Scene // sorted ascending by Priority()
	activeIdx int     // -1 when no scene is active
}

// NewComposite builds a Composite from scenes, sorted ascending by
// Priority(). priority is this Composite's own priority when nested
// inside another.
func NewComposite(priority int, scenes []Scene) *Composite {
	sorted := append([]Scene(nil), scenes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority() < sorted[j].Priority() })
	return &Composite{priority: priority, scenes: sorted, activeIdx: -1}
}

// Process is the top-level entry point: the full continuation +
// preemption-scan + clean-detect sequence.
func (c *Composite) Process(snap snapshot.Snapshot) ProcessResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processLocked(snap)
}

func (c *Composite) processLocked(snap snapshot.Snapshot) ProcessResult {
	if c.activeIdx >= 0 {
		res, ok := c.scenes[c.activeIdx].Continue(snap)
		if ok {
			if res.Firm {
				return ProcessResult{Events: res.Events, Firm: true}
			}
			// Tentative: scan every other scene for a decisive preemption.
			if matched, pres := c.detectScanLocked(snap, c.activeIdx); matched {
				return pres
			}
			return ProcessResult{Events: res.Events, Firm: false}
		}
		// Continue returned null: the scene releases. With no scene
		// excluded, a preemption scan over "every other scene" and a
		// clean-detect scan over "every scene" are the same operation,
		// so this falls straight through to the clean-detect scan below.
		c.activeIdx = -1
	}

	if matched, pres := c.detectScanLocked(snap, -1); matched {
		return pres
	}
	return ProcessResult{}
}

// detectScanLocked runs detect on every scene except excludeIdx, in
// priority order, and activates the first match.
func (c *Composite) detectScanLocked(snap snapshot.Snapshot, excludeIdx int) (bool, ProcessResult) {
	for i, s := range c.scenes {
		if i == excludeIdx {
			continue
		}
		events, ok := s.Detect(snap)
		if ok {
			c.activeIdx = i
			return true, ProcessResult{Events: events, Firm: true}
		}
	}
	return false, ProcessResult{}
}

// Priority satisfies Scene for nesting.
func (c *Composite) Priority() int { return c.priority }

// State satisfies Scene for nesting.
func (c *Composite) State() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeIdx < 0 {
		return "", false
	}
	return c.scenes[c.activeIdx].State()
}

// Detect satisfies Scene for nesting: a stateless attempt to become
// active, without consulting any scene already active in this composite.
func (c *Composite) Detect(snap snapshot.Snapshot) ([]Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeIdx >= 0 {
		return nil, false
	}
	if matched, pres := c.detectScanLocked(snap, -1); matched {
		return pres.Events, true
	}
	return nil, false
}

// Continue satisfies Scene for nesting.
func (c *Composite) Continue(snap snapshot.Snapshot) (ContinueResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := c.processLocked(snap)
	if c.activeIdx < 0 {
		return ContinueResult{}, false
	}
	return ContinueResult{Events: res.Events, Firm: res.Firm}, true
}

// EncodeInput satisfies Scene for nesting and is also how the Gateway
// reaches the active scene's translation.
func (c *Composite) EncodeInput(in Input) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeIdx < 0 {
		return nil, false
	}
	return c.scenes[c.activeIdx].EncodeInput(in)
}
