package verdict

import "fmt"

// State is the gating state of one pillar.
type State string

const (
	StatePending State = "PENDING"
	StatePass    State = "PASS"
	StateFail    State = "FAIL"
)

// transitions lists the legal moves out of each state. PASS and FAIL are
// terminal.
var transitions = map[State][]State{
	StatePending: {StatePass, StateFail},
	StatePass:    nil,
	StateFail:    nil,
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// Transition moves from one state to another, rejecting anything the
// transition table does not allow.
func Transition(from, to State) (State, error) {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return to, nil
		}
	}
	return from, fmt.Errorf("illegal pillar transition %s -> %s", from, to)
}
