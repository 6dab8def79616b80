// Package wizard implements the multi-step period entry conversation as an
// explicit state machine. Each awaiting state has one handler that either
// asks for the next field or finishes with a resolved interval.
package wizard

import (
	"errors"
	"fmt"

	"paybot/internal/period"
)

// State names the field a conversation is waiting for.
type State string

const (
	StateIdle           State = ""
	StateAwaitDay       State = "await_day"
	StateAwaitMonth     State = "await_month"
	StateAwaitRangeFrom State = "await_range_start"
	StateAwaitRangeTo   State = "await_range_end"
	StateAwaitTimeFrom  State = "await_time_start"
	StateAwaitTimeTo    State = "await_time_end"
)

// Flow selects which conversation to begin.
type Flow string

const (
	FlowDay   Flow = "day"
	FlowMonth Flow = "month"
	FlowRange Flow = "range"
	FlowTime  Flow = "time"
)

// Session is the persisted per-conversation wizard state.
type Session struct {
	State State  `json:"state"`
	Start string `json:"start,omitempty"` // first bound of a two-step flow, as typed
}

func (s Session) Active() bool { return s.State != StateIdle }

// Outcome tells the caller what to do after a step.
type Outcome int

const (
	// Await keeps the session and prompts for Session.State.
	Await Outcome = iota
	// Done ends the session with Interval.
	Done
	// Reset ends the session and returns the user to the main menu.
	Reset
)

// Step is the result of beginning or advancing a conversation. Err is set
// when the input was rejected: ErrInvalidFormat with Await re-prompts the same
// field, ErrStartNotBefore comes with Reset.
type Step struct {
	Outcome  Outcome
	Session  Session
	Interval period.Interval
	Err      error
}

var ErrUnknownFlow = errors.New("unknown wizard flow")

type handler func(m *Machine, s Session, input string) Step

// Machine drives sessions through their states.
type Machine struct {
	resolver *period.Resolver
	handlers map[State]handler
}

func NewMachine(resolver *period.Resolver) *Machine {
	return &Machine{
		resolver: resolver,
		handlers: map[State]handler{
			StateAwaitDay:       handleDay,
			StateAwaitMonth:     handleMonth,
			StateAwaitRangeFrom: handleRangeFrom,
			StateAwaitRangeTo:   handleRangeTo,
			StateAwaitTimeFrom:  handleTimeFrom,
			StateAwaitTimeTo:    handleTimeTo,
		},
	}
}

// Begin starts flow and returns the first prompt.
func (m *Machine) Begin(flow Flow) (Step, error) {
	var first State
	switch flow {
	case FlowDay:
		first = StateAwaitDay
	case FlowMonth:
		first = StateAwaitMonth
	case FlowRange:
		first = StateAwaitRangeFrom
	case FlowTime:
		first = StateAwaitTimeFrom
	default:
		return Step{}, fmt.Errorf("%w: %q", ErrUnknownFlow, flow)
	}
	return Step{Outcome: Await, Session: Session{State: first}}, nil
}

// Advance feeds one user input to the session's current state.
func (m *Machine) Advance(s Session, input string) Step {
	h, ok := m.handlers[s.State]
	if !ok {
		return Step{Outcome: Reset}
	}
	return h(m, s, input)
}

func await(s Session, err error) Step {
	return Step{Outcome: Await, Session: s, Err: err}
}

// finish maps a resolver result to a terminal step. Malformed input keeps
// the current field; an ordering failure resets the conversation.
func finish(s Session, iv period.Interval, err error) Step {
	switch {
	case err == nil:
		return Step{Outcome: Done, Interval: iv}
	case errors.Is(err, period.ErrStartNotBefore):
		return Step{Outcome: Reset, Err: err}
	default:
		return await(s, err)
	}
}

func handleDay(m *Machine, s Session, input string) Step {
	iv, err := m.resolver.Day(input)
	return finish(s, iv, err)
}

func handleMonth(m *Machine, s Session, input string) Step {
	iv, err := m.resolver.Month(input)
	return finish(s, iv, err)
}

func handleRangeFrom(m *Machine, s Session, input string) Step {
	if _, err := m.resolver.DateTime(input); err != nil {
		return await(s, err)
	}
	return await(Session{State: StateAwaitRangeTo, Start: input}, nil)
}

func handleRangeTo(m *Machine, s Session, input string) Step {
	iv, err := m.resolver.Range(s.Start, input)
	return finish(s, iv, err)
}

func handleTimeFrom(m *Machine, s Session, input string) Step {
	if _, err := m.resolver.Clock(input); err != nil {
		return await(s, err)
	}
	return await(Session{State: StateAwaitTimeTo, Start: input}, nil)
}

func handleTimeTo(m *Machine, s Session, input string) Step {
	iv, err := m.resolver.TimeRange(s.Start, input)
	return finish(s, iv, err)
}
