// Package sched classifies imported cards into scheduling states and seeds
// their memory model.
package sched

import (
	"fmt"

	"github.com/conorfennell/knolimport/internal/domain"
)

// State is the scheduling classification of a card. The numeric values are
// what the store persists in a card's type and queue columns.
type State int

const (
	Learning State = 0
	Review   State = 1
	New      State = 2
)

func (s State) String() string {
	switch s {
	case New:
		return "new"
	case Learning:
		return "learning"
	case Review:
		return "review"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Policy maps the scheduling attributes a source carried to a State.
type Policy interface {
	Classify(attrs domain.SchedAttrs) State
}

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc func(attrs domain.SchedAttrs) State

func (f PolicyFunc) Classify(attrs domain.SchedAttrs) State { return f(attrs) }

// DefaultPolicy checks the successful-review signal before the repetition
// signal: a card reviewed successfully at least once is in review, a card
// attempted but never passed is learning, anything else is new.
var DefaultPolicy Policy = PolicyFunc(func(attrs domain.SchedAttrs) State {
	switch {
	case attrs.Successive > 0:
		return Review
	case attrs.Reps > 0:
		return Learning
	default:
		return New
	}
})
