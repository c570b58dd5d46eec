// Package activity implements the per-world activity tracker: a
// pending-operation counter that brackets processing/idle transitions
// and attributes activity to a source.
//
// Grounded on the begin/end bracketing idiom implied by the teacher's
// internal/agent/event_emitter.go StatsCollector (which pairs
// RunStarted/RunFinished and ToolStarted/ToolFinished events), here
// generalized into a dedicated per-world field rather than symbol-keyed
// hidden state on the world object.
package activity

import "sync"

// Change is the kind of transition an activity event reports.
type Change string

const (
	ChangeStart Change = "start"
	ChangeEnd   Change = "end"
)

// State is the world.isProcessing-mirroring state after a change.
type State string

const (
	StateProcessing State = "processing"
	StateIdle       State = "idle"
)

// Event is published whenever a world's activity bracket changes.
type Event struct {
	WorldID string
	Change  Change
	State   State
	Source  string
}

// Publisher forwards activity events to the world bus's
// "world-activity"/"processing"/"idle" channels. Implemented by
// internal/worldbus.
type Publisher interface {
	PublishActivity(Event)
}

// worldActivity is the private per-world counter state.
type worldActivity struct {
	pending       int
	lastActivityID uint64
	activeSources map[string]int
}

// Tracker owns activity state for every world it has seen.
type Tracker struct {
	mu        sync.Mutex
	worlds    map[string]*worldActivity
	publisher Publisher
}

// NewTracker creates a tracker publishing through publisher (nil
// disables publication, e.g. in tests).
func NewTracker(publisher Publisher) *Tracker {
	return &Tracker{
		worlds:    make(map[string]*worldActivity),
		publisher: publisher,
	}
}

func (t *Tracker) stateFor(worldID string) *worldActivity {
	w, ok := t.worlds[worldID]
	if !ok {
		w = &worldActivity{activeSources: make(map[string]int)}
		t.worlds[worldID] = w
	}
	return w
}

// Release ends one begun operation.
type Release func()

// Begin increments the pending-operation counter for worldID, bumping
// the activity id on a 0->1 transition and emitting a "start" event.
// source is optional attribution (e.g. tool name or "llm"). The
// returned Release is idempotent: calling it more than once is a no-op
// after the first call.
func (t *Tracker) Begin(worldID, source string) Release {
	t.mu.Lock()
	w := t.stateFor(worldID)
	w.pending++
	if w.pending == 1 {
		w.lastActivityID++
	}
	if source != "" {
		w.activeSources[source]++
	}
	t.mu.Unlock()

	t.publish(Event{WorldID: worldID, Change: ChangeStart, State: StateProcessing, Source: source})

	var once sync.Once
	return func() {
		once.Do(func() {
			t.release(worldID, source)
		})
	}
}

func (t *Tracker) release(worldID, source string) {
	t.mu.Lock()
	w := t.stateFor(worldID)
	if w.pending > 0 {
		w.pending--
	}
	if source != "" && w.activeSources[source] > 0 {
		w.activeSources[source]--
		if w.activeSources[source] == 0 {
			delete(w.activeSources, source)
		}
	}
	idle := w.pending == 0
	t.mu.Unlock()

	if idle {
		t.publish(Event{WorldID: worldID, Change: ChangeEnd, State: StateIdle, Source: source})
	} else {
		t.publish(Event{WorldID: worldID, Change: ChangeEnd, State: StateProcessing, Source: source})
	}
}

func (t *Tracker) publish(e Event) {
	if t.publisher != nil {
		t.publisher.PublishActivity(e)
	}
}

// IsProcessing mirrors world.isProcessing: true iff pending > 0.
func (t *Tracker) IsProcessing(worldID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.worlds[worldID]
	return ok && w.pending > 0
}

// PendingCount returns the current pending-operation count for worldID.
func (t *Tracker) PendingCount(worldID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.worlds[worldID]
	if !ok {
		return 0
	}
	return w.pending
}
