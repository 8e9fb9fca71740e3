// Package actions defines the closed vocabulary of ticket workflow actions.
//
// Each action kind is its own variant carrying only the fields that kind
// requires, so the engine dispatches on a tagged type instead of an untyped
// string branch.
package actions

import (
	"errors"
	"fmt"

	"github.com/hivedesk/hivedesk/pkg/models"
)

// Kind identifies an action on the wire.
type Kind string

const (
	KindInProgress      Kind = "in_progress"
	KindForward         Kind = "forward"
	KindReassign        Kind = "reassign"
	KindFormGroup       Kind = "form_group"
	KindRevert          Kind = "revert"
	KindBlockerReported Kind = "blocker_reported"
	KindBlockerResolved Kind = "blocker_resolved"
	KindResolve         Kind = "resolve"
	KindClose           Kind = "close"
	KindReopen          Kind = "reopen"
)

var (
	// ErrUnknownAction indicates the action string is not in the vocabulary.
	ErrUnknownAction = errors.New("unknown action")

	// ErrMissingField indicates a required action-specific field is absent.
	ErrMissingField = errors.New("missing required field")

	// ErrUnresolvableIdentity indicates a supplied identity is incomplete.
	ErrUnresolvableIdentity = errors.New("identity not resolvable")
)

// Attachment is an inbound file payload tied to an action.
type Attachment struct {
	Name     string `json:"name"`
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type"`
}

// Action is the closed interface over all action variants. Validate enforces
// the variant's required fields before the engine touches any state.
type Action interface {
	Kind() Kind
	Validate() error
}

// InProgress marks the ticket as being worked on.
type InProgress struct{}

func (InProgress) Kind() Kind      { return KindInProgress }
func (InProgress) Validate() error { return nil }

// Forward advances the ticket along an edge to a target node.
type Forward struct {
	ToNode      string       `json:"to_node"`
	Explanation string       `json:"explanation"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

func (Forward) Kind() Kind { return KindForward }

func (a Forward) Validate() error {
	if a.ToNode == "" {
		return fmt.Errorf("%w: to_node", ErrMissingField)
	}

	if a.Explanation == "" {
		return fmt.Errorf("%w: explanation", ErrMissingField)
	}

	return nil
}

// Reassign hands the ticket to a different set of assignees at the same stage.
type Reassign struct {
	ReassignTo  []models.Identity `json:"reassign_to"`
	Explanation string            `json:"explanation,omitempty"`
}

func (Reassign) Kind() Kind { return KindReassign }

func (a Reassign) Validate() error {
	if len(a.ReassignTo) == 0 {
		return fmt.Errorf("%w: reassign_to", ErrMissingField)
	}

	for _, id := range a.ReassignTo {
		if id.UserID == "" || id.Name == "" {
			return fmt.Errorf("%w: %q", ErrUnresolvableIdentity, id.UserID)
		}
	}

	return nil
}

// FormGroup turns the current stage into a lead+members working group.
type FormGroup struct {
	GroupLead    models.Identity   `json:"group_lead"`
	GroupMembers []models.Identity `json:"group_members"`
}

func (FormGroup) Kind() Kind { return KindFormGroup }

func (a FormGroup) Validate() error {
	if a.GroupLead.UserID == "" || a.GroupLead.Name == "" {
		return fmt.Errorf("%w: group_lead", ErrMissingField)
	}

	if len(a.GroupMembers) < 2 {
		return fmt.Errorf("%w: group_members (need at least two including the lead)", ErrMissingField)
	}

	leadListed := false

	for _, id := range a.GroupMembers {
		if id.UserID == "" || id.Name == "" {
			return fmt.Errorf("%w: %q", ErrUnresolvableIdentity, id.UserID)
		}

		if id.UserID == a.GroupLead.UserID {
			leadListed = true
		}
	}

	if !leadListed {
		return fmt.Errorf("%w: group_members (must include the lead)", ErrMissingField)
	}

	return nil
}

// Revert sends the ticket one step back to the predecessor node.
type Revert struct {
	RevertMessage string       `json:"revert_message"`
	Attachments   []Attachment `json:"attachments,omitempty"`
}

func (Revert) Kind() Kind { return KindRevert }

func (a Revert) Validate() error {
	if a.RevertMessage == "" {
		return fmt.Errorf("%w: revert_message", ErrMissingField)
	}

	return nil
}

// BlockerReported records an impediment and suspends progression.
type BlockerReported struct {
	BlockerDescription string `json:"blocker_description"`
}

func (BlockerReported) Kind() Kind { return KindBlockerReported }

func (a BlockerReported) Validate() error {
	if a.BlockerDescription == "" {
		return fmt.Errorf("%w: blocker_description", ErrMissingField)
	}

	return nil
}

// BlockerResolved resolves the most recently reported blocker.
type BlockerResolved struct{}

func (BlockerResolved) Kind() Kind      { return KindBlockerResolved }
func (BlockerResolved) Validate() error { return nil }

// Resolve marks the ticket resolved at its current stage.
type Resolve struct{}

func (Resolve) Kind() Kind      { return KindResolve }
func (Resolve) Validate() error { return nil }

// Close closes the ticket.
type Close struct{}

func (Close) Kind() Kind      { return KindClose }
func (Close) Validate() error { return nil }

// Reopen revives a terminal ticket at a caller-chosen node.
type Reopen struct {
	ToNode      string `json:"to_node"`
	Explanation string `json:"explanation,omitempty"`
}

func (Reopen) Kind() Kind { return KindReopen }

func (a Reopen) Validate() error {
	if a.ToNode == "" {
		return fmt.Errorf("%w: to_node", ErrMissingField)
	}

	return nil
}
