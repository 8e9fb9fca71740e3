package actions

import (
	"encoding/json"
	"fmt"
)

// Parse decodes the wire form of an action into its typed variant and runs the
// variant's validation. The payload is the action-specific remainder of the
// request body; variants without fields accept an empty payload.
func Parse(kind Kind, payload []byte) (Action, error) {
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	var action Action

	switch kind {
	case KindInProgress:
		action = InProgress{}
	case KindForward:
		var a Forward
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, fmt.Errorf("failed to decode forward payload: %w", err)
		}

		action = a
	case KindReassign:
		var a Reassign
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, fmt.Errorf("failed to decode reassign payload: %w", err)
		}

		action = a
	case KindFormGroup:
		var a FormGroup
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, fmt.Errorf("failed to decode form_group payload: %w", err)
		}

		action = a
	case KindRevert:
		var a Revert
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, fmt.Errorf("failed to decode revert payload: %w", err)
		}

		action = a
	case KindBlockerReported:
		var a BlockerReported
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, fmt.Errorf("failed to decode blocker_reported payload: %w", err)
		}

		action = a
	case KindBlockerResolved:
		action = BlockerResolved{}
	case KindResolve:
		action = Resolve{}
	case KindClose:
		action = Close{}
	case KindReopen:
		var a Reopen
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, fmt.Errorf("failed to decode reopen payload: %w", err)
		}

		action = a
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, kind)
	}

	if err := action.Validate(); err != nil {
		return nil, err
	}

	return action, nil
}
