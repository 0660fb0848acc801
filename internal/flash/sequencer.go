// Package flash drives the timed display of one phrase at a time: a short
// countdown, a fixed flash, then a recall prompt that is scored on submit.
//
// A Sequencer holds no persistence knowledge. It reports what happens through
// a Listener and hands scored attempts back to its caller.
package flash

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/renaissance/internal/domain/recall"
)

// State is a Sequencer phase.
type State int

// Sequencer phases.
const (
	StateIdle State = iota
	StateCountdown
	StateFlashing
	StateAwaitingInput
	StateScored
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCountdown:
		return "countdown"
	case StateFlashing:
		return "flashing"
	case StateAwaitingInput:
		return "awaiting_input"
	case StateScored:
		return "scored"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Sequencer errors
var (
	ErrInvalidTransition = errors.New("operation not allowed in current state")
	ErrBlankInput        = errors.New("recall cannot be blank")
	ErrEmptyPhrase       = errors.New("phrase cannot be empty")
	ErrFlashDuration     = errors.New("flash duration must be positive")
)

// Defaults for the countdown lead-in.
const (
	DefaultCountdownTicks = 3
	DefaultTickInterval   = time.Second
)

// Attempt is a scored recall produced by Submit.
type Attempt struct {
	Expected     string
	Recalled     string
	Result       recall.Result
	StartedAt    time.Time
	ResponseTime time.Duration
}

// Config configures a Sequencer. Zero values select defaults.
type Config struct {
	Clock          Clock
	Evaluator      *recall.Evaluator
	CountdownTicks int
	TickInterval   time.Duration
	Listener       Listener
}

// Sequencer is the state machine for one learner. It is safe for concurrent
// use; timer callbacks and caller operations serialize on an internal mutex
// and listener callbacks run after the mutex is released.
type Sequencer struct {
	mu        sync.Mutex
	clock     Clock
	evaluator *recall.Evaluator
	ticks     int
	interval  time.Duration
	listener  Listener

	state     State
	epoch     uint64
	text      string
	flash     time.Duration
	remaining int
	startedAt time.Time
	timer     Timer
	last      *Attempt
}

// NewSequencer creates a Sequencer in StateIdle.
func NewSequencer(cfg Config) *Sequencer {
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = recall.NewEvaluator(nil)
	}
	if cfg.CountdownTicks < 0 {
		cfg.CountdownTicks = 0
	} else if cfg.CountdownTicks == 0 {
		cfg.CountdownTicks = DefaultCountdownTicks
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Listener == nil {
		cfg.Listener = func(Event) {}
	}
	return &Sequencer{
		clock:     cfg.Clock,
		evaluator: cfg.Evaluator,
		ticks:     cfg.CountdownTicks,
		interval:  cfg.TickInterval,
		listener:  cfg.Listener,
		state:     StateIdle,
	}
}

// State returns the current phase.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Epoch returns the generation of the phrase in flight.
func (s *Sequencer) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Visible returns the phrase text while it is flashed and "" otherwise.
func (s *Sequencer) Visible() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFlashing {
		return s.text
	}
	return ""
}

// LastAttempt returns the attempt produced by the most recent Submit.
func (s *Sequencer) LastAttempt() *Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// BeginPhrase starts the countdown for text. It is accepted from StateIdle
// and from StateScored, where it moves on to the next phrase.
func (s *Sequencer) BeginPhrase(text string, flash time.Duration) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyPhrase
	}
	if flash <= 0 {
		return ErrFlashDuration
	}

	s.mu.Lock()
	if s.state != StateIdle && s.state != StateScored {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: begin phrase in %s", ErrInvalidTransition, state)
	}
	s.epoch++
	s.text = text
	s.flash = flash
	s.last = nil
	s.remaining = s.ticks

	var events []Event
	if s.remaining == 0 {
		events = s.showLocked()
	} else {
		s.state = StateCountdown
		events = append(events, s.eventLocked(EventCountdownTick))
		s.armLocked(s.interval, StateCountdown, s.onTick)
	}
	s.mu.Unlock()

	s.emit(events)
	return nil
}

// Submit scores input against the hidden phrase. It is only accepted from
// StateAwaitingInput; blank input is rejected and leaves the state unchanged.
func (s *Sequencer) Submit(input string) (*Attempt, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrBlankInput
	}

	s.mu.Lock()
	if s.state != StateAwaitingInput {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: submit in %s", ErrInvalidTransition, state)
	}
	now := s.clock.Now()
	attempt := &Attempt{
		Expected:     s.text,
		Recalled:     input,
		Result:       s.evaluator.Evaluate(input, s.text),
		StartedAt:    s.startedAt,
		ResponseTime: now.Sub(s.startedAt),
	}
	s.last = attempt
	s.state = StateScored
	ev := s.eventLocked(EventScored)
	ev.Attempt = attempt
	s.mu.Unlock()

	s.emit([]Event{ev})
	return attempt, nil
}

// Finish ends the run after the final phrase was scored.
func (s *Sequencer) Finish() error {
	s.mu.Lock()
	if s.state != StateScored {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: finish in %s", ErrInvalidTransition, state)
	}
	s.state = StateDone
	ev := s.eventLocked(EventDone)
	s.mu.Unlock()

	s.emit([]Event{ev})
	return nil
}

// Cancel aborts the phrase in flight: pending timers are stopped, their
// callbacks become stale and no attempt is produced. It returns false when
// nothing was in flight.
func (s *Sequencer) Cancel() bool {
	s.mu.Lock()
	switch s.state {
	case StateCountdown, StateFlashing, StateAwaitingInput:
	default:
		s.mu.Unlock()
		return false
	}
	s.stopLocked()
	s.epoch++
	s.state = StateIdle
	s.text = ""
	ev := s.eventLocked(EventCancelled)
	s.mu.Unlock()

	s.emit([]Event{ev})
	return true
}

// Reset returns a Done or Scored sequencer to StateIdle for a new session.
func (s *Sequencer) Reset() {
	s.mu.Lock()
	s.stopLocked()
	s.epoch++
	s.state = StateIdle
	s.text = ""
	s.last = nil
	s.mu.Unlock()
}

func (s *Sequencer) onTick() []Event {
	s.remaining--
	if s.remaining > 0 {
		ev := s.eventLocked(EventCountdownTick)
		s.armLocked(s.interval, StateCountdown, s.onTick)
		return []Event{ev}
	}
	return s.showLocked()
}

func (s *Sequencer) showLocked() []Event {
	s.state = StateFlashing
	s.startedAt = s.clock.Now()
	ev := s.eventLocked(EventShown)
	ev.Text = s.text
	s.armLocked(s.flash, StateFlashing, s.onFlashEnd)
	return []Event{ev}
}

func (s *Sequencer) onFlashEnd() []Event {
	s.state = StateAwaitingInput
	return []Event{s.eventLocked(EventHidden)}
}

// armLocked schedules step to run after d, provided the sequencer is still
// in want and in the same epoch when the timer fires.
func (s *Sequencer) armLocked(d time.Duration, want State, step func() []Event) {
	epoch := s.epoch
	s.timer = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		if s.epoch != epoch || s.state != want {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		events := step()
		s.mu.Unlock()
		s.emit(events)
	})
}

func (s *Sequencer) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Sequencer) eventLocked(kind EventKind) Event {
	return Event{
		Kind:      kind,
		State:     s.state,
		Epoch:     s.epoch,
		Remaining: s.remaining,
		At:        s.clock.Now(),
	}
}

func (s *Sequencer) emit(events []Event) {
	for _, ev := range events {
		s.listener(ev)
	}
}
