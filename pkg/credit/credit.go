// Package credit implements the attribution rules for ticket contributions.
//
// Primary credit belongs to whoever first acts at the graph's first employee
// node; everyone else who touches the ticket accumulates a secondary credit,
// deduplicated by user id. Reassignment is the one action that can transfer
// primary credit instead of only adding secondary entries.
package credit

import "github.com/hivedesk/hivedesk/pkg/models"

// Ledger is the mutable credit state of a ticket. The engine passes the
// ticket's own fields here; the functions in this package are the only code
// that mutates them.
type Ledger struct {
	Primary   **models.Credit
	Secondary *[]models.Credit
}

// LedgerOf adapts a ticket's credit fields into a Ledger.
func LedgerOf(t *models.Ticket) Ledger {
	return Ledger{
		Primary:   &t.PrimaryCredit,
		Secondary: &t.SecondaryCredits,
	}
}

// Apply credits an actor for acting on the ticket. At the first employee node
// the actor claims primary credit if nobody holds it yet; in every other case
// the actor is recorded as a secondary contributor. Claiming primary drops any
// secondary entry the actor already earned so they never hold both.
func Apply(ledger Ledger, atFirstNode bool, actor models.Identity) {
	if atFirstNode && *ledger.Primary == nil {
		*ledger.Primary = &models.Credit{UserID: actor.UserID, Name: actor.Name}
		RemoveSecondary(ledger, actor.UserID)

		return
	}

	addSecondary(ledger, actor)
}

// Distribute credits a lead and members introduced together, as on a forward to
// a parallel node or on group formation. The lead is eligible for primary under
// the same first-node rule; members are always secondary.
func Distribute(ledger Ledger, atFirstNode bool, lead models.Identity, members []models.Identity) {
	Apply(ledger, atFirstNode, lead)

	for _, member := range members {
		addSecondary(ledger, member)
	}
}

// TransferPrimary replaces the primary holder. Used when a reassignment happens
// at the first employee node: the new assignee takes over authorship rather
// than being appended as a contributor. A secondary entry the new holder may
// already have is dropped so they never appear on both sides of the ledger.
func TransferPrimary(ledger Ledger, to models.Identity) {
	*ledger.Primary = &models.Credit{UserID: to.UserID, Name: to.Name}

	RemoveSecondary(ledger, to.UserID)
}

// RemoveSecondary drops a user's secondary credit entry. Used when a performer
// reassigns the ticket away from a non-first node and hands off their claim.
func RemoveSecondary(ledger Ledger, userID string) {
	secondary := *ledger.Secondary
	for i, c := range secondary {
		if c.UserID == userID {
			*ledger.Secondary = append(secondary[:i], secondary[i+1:]...)

			return
		}
	}
}

// AddSecondary records a secondary contributor, deduplicated by user id. The
// primary holder never also appears in the secondary list.
func AddSecondary(ledger Ledger, actor models.Identity) {
	addSecondary(ledger, actor)
}

func addSecondary(ledger Ledger, actor models.Identity) {
	if primary := *ledger.Primary; primary != nil && primary.UserID == actor.UserID {
		return
	}

	for _, c := range *ledger.Secondary {
		if c.UserID == actor.UserID {
			return
		}
	}

	*ledger.Secondary = append(*ledger.Secondary, models.Credit{UserID: actor.UserID, Name: actor.Name})
}
