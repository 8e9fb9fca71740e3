// Package engine implements the ticket workflow action processor.
//
// Execute is a single load-mutate-persist sequence: it loads the ticket and
// its workflow graph, dispatches to the handler for the action variant,
// mutates stage, assignment, credit and history in memory, and persists the
// ticket as the one commit point. Validation, referential and transition
// errors abort before any observable mutation; notification dispatch runs
// only after a successful save and never fails the action.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hivedesk/hivedesk/pkg/actions"
	"github.com/hivedesk/hivedesk/pkg/attachments"
	"github.com/hivedesk/hivedesk/pkg/credit"
	"github.com/hivedesk/hivedesk/pkg/eventbus"
	"github.com/hivedesk/hivedesk/pkg/events"
	"github.com/hivedesk/hivedesk/pkg/models"
	"github.com/hivedesk/hivedesk/pkg/notifier"
	"github.com/hivedesk/hivedesk/pkg/otelhelper"
	"github.com/hivedesk/hivedesk/pkg/persistence"
	"github.com/hivedesk/hivedesk/pkg/workflow"
)

// Result is the caller-visible snapshot returned after a committed action.
type Result struct {
	TicketNumber     string              `json:"ticket_number"`
	Status           models.TicketStatus `json:"status"`
	WorkflowStage    string              `json:"workflow_stage"`
	CurrentAssignees []string            `json:"current_assignees"`
	GroupLead        string              `json:"group_lead,omitempty"`
	PrimaryCredit    *models.Credit      `json:"primary_credit,omitempty"`
	SecondaryCredits []models.Credit     `json:"secondary_credits"`
}

// Engine executes workflow actions against ticket records.
type Engine struct {
	persistence persistence.Persistence
	attachments attachments.Store
	notifier    notifier.Notifier
	tracer      trace.Tracer
	logger      *slog.Logger
}

func New(
	p persistence.Persistence,
	store attachments.Store,
	n notifier.Notifier,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		persistence: p,
		attachments: store,
		notifier:    n,
		tracer:      otel.Tracer("hivedesk-engine"),
		logger:      logger.With("module", "engine"),
	}
}

// Execute runs one action against the ticket. The save is conditional on the
// version read at load time, so a concurrent writer surfaces as ErrConflict
// instead of being silently clobbered.
func (e *Engine) Execute(ctx context.Context, ticketNumber string, actor models.Identity, action actions.Action) (*Result, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.execute",
		attribute.String(otelhelper.TicketNumberKey, ticketNumber),
		attribute.String(otelhelper.ActionKindKey, string(action.Kind())),
		attribute.String(otelhelper.ActorIDKey, actor.UserID),
	)
	defer span.End()

	if actor.UserID == "" || actor.Name == "" {
		return nil, fmt.Errorf("%w: performed_by", actions.ErrUnresolvableIdentity)
	}

	if err := action.Validate(); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	ticket, err := e.persistence.TicketRepository().GetByNumber(ctx, ticketNumber)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	wf, err := e.persistence.WorkflowRepository().GetByID(ctx, ticket.WorkflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	graph, err := workflow.NewGraph(wf)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("workflow %s is not executable: %w", wf.ID, err)
	}

	pending := make([]eventbus.Event, 0, 1)

	err = e.dispatch(ctx, ticket, graph, actor, action, &pending)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	// The save is the commit point: if it fails, the action is considered
	// not to have happened and nothing below runs.
	err = e.persistence.TicketRepository().Save(ctx, ticket)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	for _, event := range pending {
		e.notifier.Notify(ctx, event)
	}

	e.logger.InfoContext(ctx, "Action executed",
		"ticket", ticket.Number,
		"action", action.Kind(),
		"actor", actor.UserID,
		"stage", ticket.WorkflowStage,
		"status", ticket.Status,
	)

	return resultOf(ticket), nil
}

func (e *Engine) dispatch(
	ctx context.Context,
	t *models.Ticket,
	g *workflow.Graph,
	actor models.Identity,
	action actions.Action,
	pending *[]eventbus.Event,
) error {
	switch a := action.(type) {
	case actions.InProgress:
		return e.markInProgress(t, g, actor)
	case actions.Forward:
		return e.forward(ctx, t, g, actor, a, pending)
	case actions.Reassign:
		return e.reassign(t, g, actor, a, pending)
	case actions.FormGroup:
		return e.formGroup(t, g, actor, a, pending)
	case actions.Revert:
		return e.revert(ctx, t, g, actor, a, pending)
	case actions.BlockerReported:
		return e.reportBlocker(t, g, actor, a)
	case actions.BlockerResolved:
		return e.resolveBlocker(t, g, actor)
	case actions.Resolve:
		return e.resolve(t, g, actor, pending)
	case actions.Close:
		return e.close(t, actor)
	case actions.Reopen:
		return e.reopen(t, g, actor, a)
	default:
		return fmt.Errorf("%w: %q", actions.ErrUnknownAction, action.Kind())
	}
}

func (e *Engine) markInProgress(t *models.Ticket, g *workflow.Graph, actor models.Identity) error {
	credit.Apply(credit.LedgerOf(t), g.IsFirstEmployeeNode(t.WorkflowStage), actor)

	t.Status = models.TicketStatusInProgress
	t.AppendHistory(models.HistoryEntry{
		ActionType:  string(actions.KindInProgress),
		PerformedBy: actor,
		PerformedAt: time.Now().UTC(),
	})

	return nil
}

func (e *Engine) forward(
	ctx context.Context,
	t *models.Ticket,
	g *workflow.Graph,
	actor models.Identity,
	a actions.Forward,
	pending *[]eventbus.Event,
) error {
	target, err := g.NodeByID(a.ToNode)
	if err != nil {
		return err
	}

	if target.IsStart() {
		return fmt.Errorf("%w: cannot forward to the start node", ErrIllegalTransition)
	}

	fromNode := t.WorkflowStage
	ledger := credit.LedgerOf(t)
	credit.Apply(ledger, g.IsFirstEmployeeNode(fromNode), actor)

	paths := e.saveAttachments(ctx, t.Number, a.Attachments)
	now := time.Now().UTC()

	t.AppendHistory(models.HistoryEntry{
		ActionType:  string(actions.KindForward),
		PerformedBy: actor,
		PerformedAt: now,
		FromNode:    fromNode,
		ToNode:      target.ID,
		Explanation: a.Explanation,
		Attachments: paths,
	})

	if target.IsEnd() {
		t.WorkflowStage = target.ID
		t.CurrentAssignee = ""
		t.CurrentAssignees = []string{}
		t.GroupLead = ""
		t.Status = models.TicketStatusResolved
		t.AppendHistory(models.HistoryEntry{
			ActionType:  string(actions.KindResolve),
			PerformedBy: actor,
			PerformedAt: now,
			ToNode:      target.ID,
		})

		*pending = append(*pending, events.TicketResolved{
			BaseEvent:  events.NewBaseEvent(events.TicketResolvedEvent, t.Number, t.WorkflowID),
			ResolvedBy: actor,
			CreatedBy:  t.CreatedBy,
		})

		return nil
	}

	PlaceAt(t, target)

	if target.IsParallel() {
		lead, members := groupIdentities(target)
		credit.Distribute(ledger, g.IsFirstEmployeeNode(target.ID), lead, members)
	} else {
		credit.AddSecondary(ledger, identityFor(target.Data.EmployeeID, target.Data.Label))
	}

	t.Status = models.TicketStatusPending

	*pending = append(*pending, events.TicketForwarded{
		BaseEvent:   events.NewBaseEvent(events.TicketForwardedEvent, t.Number, t.WorkflowID),
		FromNode:    fromNode,
		ToNode:      target.ID,
		ForwardedBy: actor,
		Assignees:   t.CurrentAssignees,
		Explanation: a.Explanation,
	})

	return nil
}

func (e *Engine) reassign(
	t *models.Ticket,
	g *workflow.Graph,
	actor models.Identity,
	a actions.Reassign,
	pending *[]eventbus.Event,
) error {
	ledger := credit.LedgerOf(t)

	if g.IsFirstEmployeeNode(t.WorkflowStage) {
		// At the first node a reassignment hands over authorship itself.
		credit.TransferPrimary(ledger, a.ReassignTo[0])

		for _, identity := range a.ReassignTo[1:] {
			credit.AddSecondary(ledger, identity)
		}
	} else {
		credit.RemoveSecondary(ledger, actor.UserID)

		for _, identity := range a.ReassignTo {
			credit.AddSecondary(ledger, identity)
		}
	}

	assignees := make([]string, 0, len(a.ReassignTo))
	for _, identity := range a.ReassignTo {
		assignees = append(assignees, identity.UserID)
	}

	t.CurrentAssignees = assignees
	t.CurrentAssignee = assignees[0]

	if len(assignees) > 1 {
		t.GroupLead = assignees[0]
	} else {
		t.GroupLead = ""
	}

	t.Status = models.TicketStatusPending
	t.AppendHistory(models.HistoryEntry{
		ActionType:   string(actions.KindReassign),
		PerformedBy:  actor,
		PerformedAt:  time.Now().UTC(),
		Explanation:  a.Explanation,
		ReassignedTo: assignees,
	})

	*pending = append(*pending, events.TicketReassigned{
		BaseEvent:    events.NewBaseEvent(events.TicketReassignedEvent, t.Number, t.WorkflowID),
		Node:         t.WorkflowStage,
		ReassignedBy: actor,
		ReassignedTo: a.ReassignTo,
		Explanation:  a.Explanation,
	})

	return nil
}

func (e *Engine) formGroup(
	t *models.Ticket,
	g *workflow.Graph,
	actor models.Identity,
	a actions.FormGroup,
	pending *[]eventbus.Event,
) error {
	members := make([]models.Identity, 0, len(a.GroupMembers))
	assignees := []string{a.GroupLead.UserID}

	for _, member := range a.GroupMembers {
		if member.UserID == a.GroupLead.UserID {
			continue
		}

		members = append(members, member)
		assignees = append(assignees, member.UserID)
	}

	credit.Distribute(credit.LedgerOf(t), g.IsFirstEmployeeNode(t.WorkflowStage), a.GroupLead, members)

	t.CurrentAssignees = assignees
	t.CurrentAssignee = a.GroupLead.UserID
	t.GroupLead = a.GroupLead.UserID

	t.AppendHistory(models.HistoryEntry{
		ActionType:   string(actions.KindFormGroup),
		PerformedBy:  actor,
		PerformedAt:  time.Now().UTC(),
		GroupMembers: assignees,
	})

	*pending = append(*pending, events.TicketGroupFormed{
		BaseEvent:    events.NewBaseEvent(events.TicketGroupFormedEvent, t.Number, t.WorkflowID),
		Node:         t.WorkflowStage,
		FormedBy:     actor,
		GroupLead:    a.GroupLead,
		GroupMembers: members,
	})

	return nil
}

func (e *Engine) revert(
	ctx context.Context,
	t *models.Ticket,
	g *workflow.Graph,
	actor models.Identity,
	a actions.Revert,
	pending *[]eventbus.Event,
) error {
	if g.IsFirstEmployeeNode(t.WorkflowStage) {
		return fmt.Errorf("%w: cannot revert from the first employee node", ErrIllegalTransition)
	}

	predecessor, err := g.PredecessorOf(t.WorkflowStage)
	if err != nil {
		return err
	}

	if predecessor.IsStart() {
		return fmt.Errorf("%w: cannot revert past the start node", ErrIllegalTransition)
	}

	fromNode := t.WorkflowStage

	// A revert is by definition not performed at the first node, so the
	// performer can only ever earn secondary credit here.
	credit.AddSecondary(credit.LedgerOf(t), actor)

	paths := e.saveAttachments(ctx, t.Number, a.Attachments)

	PlaceAt(t, predecessor)
	t.Status = models.TicketStatusPending

	t.AppendHistory(models.HistoryEntry{
		ActionType:  string(actions.KindRevert),
		PerformedBy: actor,
		PerformedAt: time.Now().UTC(),
		FromNode:    fromNode,
		ToNode:      predecessor.ID,
		Explanation: a.RevertMessage,
		Attachments: paths,
	})

	*pending = append(*pending, events.TicketReverted{
		BaseEvent:     events.NewBaseEvent(events.TicketRevertedEvent, t.Number, t.WorkflowID),
		FromNode:      fromNode,
		ToNode:        predecessor.ID,
		RevertedBy:    actor,
		Assignees:     t.CurrentAssignees,
		RevertMessage: a.RevertMessage,
	})

	return nil
}

func (e *Engine) reportBlocker(t *models.Ticket, g *workflow.Graph, actor models.Identity, a actions.BlockerReported) error {
	credit.Apply(credit.LedgerOf(t), g.IsFirstEmployeeNode(t.WorkflowStage), actor)

	now := time.Now().UTC()
	t.Status = models.TicketStatusBlocked
	t.Blockers = append(t.Blockers, models.Blocker{
		Description: a.BlockerDescription,
		ReportedBy:  actor,
		ReportedAt:  now,
	})

	t.AppendHistory(models.HistoryEntry{
		ActionType:         string(actions.KindBlockerReported),
		PerformedBy:        actor,
		PerformedAt:        now,
		BlockerDescription: a.BlockerDescription,
	})

	return nil
}

func (e *Engine) resolveBlocker(t *models.Ticket, g *workflow.Graph, actor models.Identity) error {
	idx := t.LastUnresolvedBlocker()
	if idx < 0 {
		return ErrNoUnresolvedBlocker
	}

	now := time.Now().UTC()
	resolver := actor
	t.Blockers[idx].IsResolved = true
	t.Blockers[idx].ResolvedBy = &resolver
	t.Blockers[idx].ResolvedAt = &now

	credit.Apply(credit.LedgerOf(t), g.IsFirstEmployeeNode(t.WorkflowStage), actor)

	t.Status = models.TicketStatusInProgress
	t.AppendHistory(models.HistoryEntry{
		ActionType:         string(actions.KindBlockerResolved),
		PerformedBy:        actor,
		PerformedAt:        now,
		BlockerDescription: t.Blockers[idx].Description,
	})

	return nil
}

func (e *Engine) resolve(t *models.Ticket, g *workflow.Graph, actor models.Identity, pending *[]eventbus.Event) error {
	credit.Apply(credit.LedgerOf(t), g.IsFirstEmployeeNode(t.WorkflowStage), actor)

	t.Status = models.TicketStatusResolved
	t.AppendHistory(models.HistoryEntry{
		ActionType:  string(actions.KindResolve),
		PerformedBy: actor,
		PerformedAt: time.Now().UTC(),
	})

	*pending = append(*pending, events.TicketResolved{
		BaseEvent:  events.NewBaseEvent(events.TicketResolvedEvent, t.Number, t.WorkflowID),
		ResolvedBy: actor,
		CreatedBy:  t.CreatedBy,
	})

	return nil
}

func (e *Engine) close(t *models.Ticket, actor models.Identity) error {
	t.Status = models.TicketStatusClosed
	t.AppendHistory(models.HistoryEntry{
		ActionType:  string(actions.KindClose),
		PerformedBy: actor,
		PerformedAt: time.Now().UTC(),
	})

	return nil
}

func (e *Engine) reopen(t *models.Ticket, g *workflow.Graph, actor models.Identity, a actions.Reopen) error {
	target, err := g.NodeByID(a.ToNode)
	if err != nil {
		return err
	}

	if !target.IsEmployee() {
		return fmt.Errorf("%w: reopen target must be an employee node", ErrIllegalTransition)
	}

	PlaceAt(t, target)
	t.Status = models.TicketStatusPending

	t.AppendHistory(models.HistoryEntry{
		ActionType:  string(actions.KindReopen),
		PerformedBy: actor,
		PerformedAt: time.Now().UTC(),
		ToNode:      target.ID,
		Explanation: a.Explanation,
	})

	return nil
}

// saveAttachments hands each upload to the attachment store. A per-file
// failure is logged and that file is dropped from the history entry; it never
// aborts the action.
func (e *Engine) saveAttachments(ctx context.Context, ticketNumber string, uploads []actions.Attachment) []string {
	if len(uploads) == 0 {
		return nil
	}

	paths := make([]string, 0, len(uploads))

	for _, upload := range uploads {
		relPath, err := e.attachments.Save(ctx, ticketNumber, attachments.Upload{
			Name:     upload.Name,
			Data:     upload.Data,
			MimeType: upload.MimeType,
		})
		if err != nil {
			e.logger.WarnContext(ctx, "Failed to save attachment, dropping it from the history entry",
				"ticket", ticketNumber, "name", upload.Name, "error", err)

			continue
		}

		paths = append(paths, relPath)
	}

	return paths
}

// PlaceAt points the ticket at a node and recomputes the holder set from the
// node's shape: a parallel node installs its lead+members group, anything
// else a single assignee. Ticket creation uses it to park a new ticket at
// the first employee node.
func PlaceAt(t *models.Ticket, node *models.WorkflowNode) {
	t.WorkflowStage = node.ID

	if node.IsParallel() {
		lead := node.Data.GroupLead
		assignees := []string{lead}

		for _, member := range node.Data.GroupMembers {
			if member == lead {
				continue
			}

			assignees = append(assignees, member)
		}

		t.CurrentAssignee = lead
		t.CurrentAssignees = assignees
		t.GroupLead = lead

		return
	}

	t.CurrentAssignee = node.Data.EmployeeID
	t.CurrentAssignees = []string{node.Data.EmployeeID}
	t.GroupLead = ""
}

// groupIdentities derives credit identities from a parallel node. The editor
// document carries only user ids for group rosters, so the id doubles as the
// display name until the directory backfills it.
func groupIdentities(node *models.WorkflowNode) (models.Identity, []models.Identity) {
	lead := identityFor(node.Data.GroupLead, "")
	members := make([]models.Identity, 0, len(node.Data.GroupMembers))

	for _, member := range node.Data.GroupMembers {
		if member == node.Data.GroupLead {
			continue
		}

		members = append(members, identityFor(member, ""))
	}

	return lead, members
}

func identityFor(userID, name string) models.Identity {
	if name == "" {
		name = userID
	}

	return models.Identity{UserID: userID, Name: name}
}

func resultOf(t *models.Ticket) *Result {
	return &Result{
		TicketNumber:     t.Number,
		Status:           t.Status,
		WorkflowStage:    t.WorkflowStage,
		CurrentAssignees: t.CurrentAssignees,
		GroupLead:        t.GroupLead,
		PrimaryCredit:    t.PrimaryCredit,
		SecondaryCredits: t.SecondaryCredits,
	}
}
