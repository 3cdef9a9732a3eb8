package controller

import (
	"errors"
	"fmt"
)

// State is the controller's position in the intervention lifecycle.
type State int

const (
	Monitoring State = iota
	Detecting
	Intervening
	Recovering
	Escalating
)

var stateNames = [...]string{"monitoring", "detecting", "intervening", "recovering", "escalating"}

// String returns the lowercase state name.
func (s State) String() string {
	if s < Monitoring || s > Escalating {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ErrInvalidTransition is returned when a state change outside the lifecycle
// chain is requested. The session stays in its prior state.
var ErrInvalidTransition = errors.New("invalid state transition")

// stateTransitions is the legal lifecycle graph. Escalating is terminal for
// the incident; the only edge out of it starts the next incident's
// monitoring phase.
var stateTransitions = map[State]map[State]bool{
	Monitoring: {Detecting: true},
	Detecting:  {Intervening: true},
	Intervening: {
		Recovering: true,
	},
	Recovering: {
		Monitoring: true,
		Escalating: true,
	},
	Escalating: {
		Monitoring: true, // new incident only
	},
}

// canTransition reports whether from→to is on the lifecycle chain.
func canTransition(from, to State) bool {
	return stateTransitions[from][to]
}
