package flash

import "time"

// EventKind names a Sequencer transition.
type EventKind string

// Sequencer transitions reported to a Listener.
const (
	EventCountdownTick EventKind = "countdown_tick"
	EventShown         EventKind = "shown"
	EventHidden        EventKind = "hidden"
	EventScored        EventKind = "scored"
	EventDone          EventKind = "done"
	EventCancelled     EventKind = "cancelled"
)

// Event describes one transition. Text is only set on EventShown and Attempt
// only on EventScored; Remaining counts countdown ticks left.
type Event struct {
	Kind      EventKind
	State     State
	Epoch     uint64
	Remaining int
	Text      string
	Attempt   *Attempt
	At        time.Time
}

// Listener receives transitions. It is never called with the Sequencer's
// lock held, so it may call back into the Sequencer.
type Listener func(Event)
