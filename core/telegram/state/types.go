package state

import "time"

// State identifies a conversation step.
type State string

// StateIdle indicates there is no active conversation with the user.
const StateIdle State = ""

// Session is the state and buffer of one user's conversation.
type Session[T any] struct {
	State     State
	Data      T
	UpdatedAt time.Time
}

// Active reports whether the session is in a non-idle state.
func (s Session[T]) Active() bool {
	return s.State != StateIdle
}
