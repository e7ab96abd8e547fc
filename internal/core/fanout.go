package core

import "sync"

// UpdateKind discriminates a CoreUpdate's payload.
type UpdateKind string

const (
	UpdateBusy            UpdateKind = "busy"
	UpdatePluginActivated  UpdateKind = "plugin_activated"
	UpdateResults          UpdateKind = "results"
	UpdateError            UpdateKind = "error"
	UpdateContextChanged   UpdateKind = "context_changed"
	UpdateNavigateForward  UpdateKind = "navigate_forward"
)

// Update is one typed notification broadcast to the active UI session.
type Update struct {
	Kind    UpdateKind
	Busy    bool
	Plugin  *ActivePlugin
	Results []SearchResult
	Message string
}

// Fanout delivers Updates to whichever session is currently registered as
// UI. It is bounded (oldest-drop overflow) and silently drops updates when
// no UI is attached, per spec.md §4.11: updates are broadcast only to the
// current UI-role session, never queued for delivery after the fact.
type Fanout struct {
	mu  sync.Mutex
	ch  chan Update
	cap int
}

// NewFanout creates a Fanout with the given bounded channel capacity.
func NewFanout(capacity int) *Fanout {
	if capacity <= 0 {
		capacity = 64
	}
	return &Fanout{ch: make(chan Update, capacity), cap: capacity}
}

// Send enqueues an update for the UI, dropping the oldest queued update if
// the channel is full rather than blocking the event-processing goroutine.
func (f *Fanout) Send(u Update) {
	select {
	case f.ch <- u:
		return
	default:
	}

	// Channel full: drop the oldest queued update to make room.
	select {
	case <-f.ch:
	default:
	}
	select {
	case f.ch <- u:
	default:
		// Lost a race with another sender; the update is dropped, which is
		// within the documented silent-drop policy.
	}
}

// Updates returns the channel a UI-session writer goroutine should drain
// and forward over the wire.
func (f *Fanout) Updates() <-chan Update { return f.ch }
