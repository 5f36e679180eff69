// Package lifecycle implements the warning state machine of a watch entry.
package lifecycle

// State is the warning state of one watch entry.
type State string

// State values. An entry is NORMAL when it has no warning record.
const (
	Normal  State = "NORMAL"
	Warning State = "WARNING"
	Expired State = "EXPIRED"
)

// Action is the bookkeeping step a transition requires.
type Action int

// Action values.
const (
	ActionNone Action = iota
	ActionRaise
	ActionRaiseExpired
	ActionClear
)

func (a Action) String() string {
	switch a {
	case ActionRaise:
		return "raise"
	case ActionRaiseExpired:
		return "raise-expired"
	case ActionClear:
		return "clear"
	}
	return "none"
}

// Transition table: from -> to -> action.
var transitions = map[State]map[State]Action{
	Normal: {
		Warning: ActionRaise,
		Expired: ActionRaiseExpired,
	},
	Warning: {
		Expired: ActionRaiseExpired,
		Normal:  ActionClear,
	},
	Expired: {
		Warning: ActionRaise,
		Normal:  ActionClear,
	},
}

// Classify derives the target state of a condition. Expiry takes
// precedence over a stale triggered reading.
func Classify(expired, triggered bool) State {
	switch {
	case expired:
		return Expired
	case triggered:
		return Warning
	}
	return Normal
}

// Current derives the state held by a warning record.
func Current(present, real bool) State {
	switch {
	case !present:
		return Normal
	case real:
		return Warning
	}
	return Expired
}

// Next returns the action for moving between two states. Staying in the
// same state never requires an action.
func Next(from, to State) Action {
	if a, ok := transitions[from][to]; ok {
		return a
	}
	return ActionNone
}
