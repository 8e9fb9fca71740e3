package engine

import "errors"

var (
	// ErrIllegalTransition indicates the action is not legal from the
	// ticket's current stage, such as reverting from the first employee
	// node or past the start marker.
	ErrIllegalTransition = errors.New("illegal workflow transition")

	// ErrNoUnresolvedBlocker indicates a blocker_resolved action arrived
	// while every reported blocker is already resolved.
	ErrNoUnresolvedBlocker = errors.New("ticket has no unresolved blocker")
)

// IsIllegalTransition checks if an error indicates an illegal stage transition.
func IsIllegalTransition(err error) bool {
	return errors.Is(err, ErrIllegalTransition)
}
