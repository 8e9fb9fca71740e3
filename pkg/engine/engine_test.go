package engine_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivedesk/hivedesk/pkg/actions"
	"github.com/hivedesk/hivedesk/pkg/attachments"
	"github.com/hivedesk/hivedesk/pkg/engine"
	"github.com/hivedesk/hivedesk/pkg/eventbus"
	"github.com/hivedesk/hivedesk/pkg/events"
	"github.com/hivedesk/hivedesk/pkg/models"
	"github.com/hivedesk/hivedesk/pkg/persistence"
	"github.com/hivedesk/hivedesk/pkg/persistence/file"
	"github.com/hivedesk/hivedesk/pkg/testutil"
	"github.com/hivedesk/hivedesk/pkg/workflow"
)

var (
	alice = models.Identity{UserID: "alice", Name: "Alice"}
	bob   = models.Identity{UserID: "bob", Name: "Bob"}
	carol = models.Identity{UserID: "carol", Name: "Carol"}
	dave  = models.Identity{UserID: "dave", Name: "Dave"}
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (n *recordingNotifier) Notify(_ context.Context, event eventbus.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.events = append(n.events, event)
}

func (n *recordingNotifier) types() []events.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()

	kinds := make([]events.EventType, 0, len(n.events))
	for _, event := range n.events {
		kinds = append(kinds, event.GetType())
	}

	return kinds
}

type failingStore struct{}

func (failingStore) Save(_ context.Context, _ string, _ attachments.Upload) (string, error) {
	return "", errors.New("disk full")
}

type fixture struct {
	engine      *engine.Engine
	persistence *file.Persistence
	notifier    *recordingNotifier
	ctx         context.Context
}

func setup(t *testing.T, wf *models.Workflow, ticket *models.Ticket) *fixture {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, p.WorkflowRepository().Save(ctx, wf))
	require.NoError(t, p.TicketRepository().Create(ctx, ticket))

	recorder := &recordingNotifier{}
	eng := engine.New(p, attachments.NewFSStore(t.TempDir()), recorder, slog.Default())

	return &fixture{engine: eng, persistence: p, notifier: recorder, ctx: ctx}
}

func (f *fixture) reload(t *testing.T, number string) *models.Ticket {
	t.Helper()

	ticket, err := f.persistence.TicketRepository().GetByNumber(f.ctx, number)
	require.NoError(t, err)

	return ticket
}

func TestExecute_InProgressAtFirstNodeEarnsPrimary(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice", "bob")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-alice", "alice"))
	f := setup(t, wf, ticket)

	result, err := f.engine.Execute(f.ctx, ticket.Number, alice, actions.InProgress{})
	require.NoError(t, err)

	assert.Equal(t, models.TicketStatusInProgress, result.Status)
	require.NotNil(t, result.PrimaryCredit)
	assert.Equal(t, "alice", result.PrimaryCredit.UserID)
	assert.Empty(t, result.SecondaryCredits)

	stored := f.reload(t, ticket.Number)
	assert.Len(t, stored.WorkflowHistory, 1)
	assert.Equal(t, int64(2), stored.Version)
}

func TestExecute_InProgressElsewhereEarnsSecondary(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice", "bob")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-bob", "bob"))
	f := setup(t, wf, ticket)

	result, err := f.engine.Execute(f.ctx, ticket.Number, bob, actions.InProgress{})
	require.NoError(t, err)

	assert.Nil(t, result.PrimaryCredit)
	require.Len(t, result.SecondaryCredits, 1)
	assert.Equal(t, "bob", result.SecondaryCredits[0].UserID)
}

func TestExecute_ForwardMovesStageAndCreditsNewAssignee(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice", "bob")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-alice", "alice"))
	f := setup(t, wf, ticket)

	_, err := f.engine.Execute(f.ctx, ticket.Number, alice, actions.InProgress{})
	require.NoError(t, err)

	result, err := f.engine.Execute(f.ctx, ticket.Number, alice, actions.Forward{
		ToNode:      "node-bob",
		Explanation: "done on my side",
	})
	require.NoError(t, err)

	assert.Equal(t, "node-bob", result.WorkflowStage)
	assert.Equal(t, models.TicketStatusPending, result.Status)
	assert.Equal(t, []string{"bob"}, result.CurrentAssignees)
	assert.Empty(t, result.GroupLead)

	require.NotNil(t, result.PrimaryCredit)
	assert.Equal(t, "alice", result.PrimaryCredit.UserID)
	require.Len(t, result.SecondaryCredits, 1)
	assert.Equal(t, "bob", result.SecondaryCredits[0].UserID)

	assert.Equal(t, []events.EventType{events.TicketForwardedEvent}, f.notifier.types())
}

func TestExecute_ForwardToEndResolves(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-alice", "alice"))
	f := setup(t, wf, ticket)

	result, err := f.engine.Execute(f.ctx, ticket.Number, alice, actions.Forward{
		ToNode:      "end",
		Explanation: "all done",
	})
	require.NoError(t, err)

	assert.Equal(t, models.TicketStatusResolved, result.Status)
	assert.Equal(t, "end", result.WorkflowStage)
	assert.Empty(t, result.CurrentAssignees)

	stored := f.reload(t, ticket.Number)
	require.Len(t, stored.WorkflowHistory, 2)
	assert.Equal(t, string(actions.KindForward), stored.WorkflowHistory[0].ActionType)
	assert.Equal(t, string(actions.KindResolve), stored.WorkflowHistory[1].ActionType)

	assert.Equal(t, []events.EventType{events.TicketResolvedEvent}, f.notifier.types())
}

func TestExecute_ForwardToParallelInstallsGroup(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice", "review")
	testutil.WithParallelNode(wf, "node-review", "bob", "carol", "dave")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-alice", "alice"))
	f := setup(t, wf, ticket)

	result, err := f.engine.Execute(f.ctx, ticket.Number, alice, actions.Forward{
		ToNode:      "node-review",
		Explanation: "ready for review",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"bob", "carol", "dave"}, result.CurrentAssignees)
	assert.Equal(t, "bob", result.GroupLead)

	// Performer took primary at the first node; the whole group lands in
	// secondary credit.
	require.NotNil(t, result.PrimaryCredit)
	assert.Equal(t, "alice", result.PrimaryCredit.UserID)

	got := make([]string, 0, len(result.SecondaryCredits))
	for _, c := range result.SecondaryCredits {
		got = append(got, c.UserID)
	}

	assert.ElementsMatch(t, []string{"bob", "carol", "dave"}, got)
}

func TestExecute_ForwardToUnknownNodeFailsWithoutMutation(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice", "bob")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-alice", "alice"))
	f := setup(t, wf, ticket)

	_, err := f.engine.Execute(f.ctx, ticket.Number, alice, actions.Forward{
		ToNode:      "node-ghost",
		Explanation: "where does this go",
	})
	require.Error(t, err)
	assert.True(t, workflow.IsNodeNotFound(err))

	stored := f.reload(t, ticket.Number)
	assert.Equal(t, "node-alice", stored.WorkflowStage)
	assert.Empty(t, stored.WorkflowHistory)
	assert.Equal(t, int64(1), stored.Version)
	assert.Empty(t, f.notifier.types())
}

func TestExecute_ReassignAtFirstNodeTransfersPrimary(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice", "bob")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-alice", "alice"))
	f := setup(t, wf, ticket)

	_, err := f.engine.Execute(f.ctx, ticket.Number, alice, actions.InProgress{})
	require.NoError(t, err)

	result, err := f.engine.Execute(f.ctx, ticket.Number, alice, actions.Reassign{
		ReassignTo: []models.Identity{carol},
	})
	require.NoError(t, err)

	require.NotNil(t, result.PrimaryCredit)
	assert.Equal(t, "carol", result.PrimaryCredit.UserID)
	assert.Equal(t, []string{"carol"}, result.CurrentAssignees)
	assert.Equal(t, models.TicketStatusPending, result.Status)

	assert.Equal(t, []events.EventType{events.TicketReassignedEvent}, f.notifier.types())
}

func TestExecute_ReassignElsewhereHandsOffSecondaryClaim(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice", "bob")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-bob", "bob"))
	f := setup(t, wf, ticket)

	_, err := f.engine.Execute(f.ctx, ticket.Number, bob, actions.InProgress{})
	require.NoError(t, err)

	result, err := f.engine.Execute(f.ctx, ticket.Number, bob, actions.Reassign{
		ReassignTo:  []models.Identity{carol},
		Explanation: "on leave next week",
	})
	require.NoError(t, err)

	got := make([]string, 0, len(result.SecondaryCredits))
	for _, c := range result.SecondaryCredits {
		got = append(got, c.UserID)
	}

	assert.Equal(t, []string{"carol"}, got)
	assert.Equal(t, []string{"carol"}, result.CurrentAssignees)
}

func TestExecute_FormGroupCreditsLeadAndMembers(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice", "bob")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-bob", "bob"))
	f := setup(t, wf, ticket)

	result, err := f.engine.Execute(f.ctx, ticket.Number, bob, actions.FormGroup{
		GroupLead:    bob,
		GroupMembers: []models.Identity{bob, carol, dave},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"bob", "carol", "dave"}, result.CurrentAssignees)
	assert.Equal(t, "bob", result.GroupLead)

	got := make([]string, 0, len(result.SecondaryCredits))
	for _, c := range result.SecondaryCredits {
		got = append(got, c.UserID)
	}

	assert.ElementsMatch(t, []string{"bob", "carol", "dave"}, got)
	assert.Equal(t, []events.EventType{events.TicketGroupFormedEvent}, f.notifier.types())
}

func TestExecute_RevertAtFirstNodeIsIllegal(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice", "bob")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-alice", "alice"))
	f := setup(t, wf, ticket)

	_, err := f.engine.Execute(f.ctx, ticket.Number, alice, actions.Revert{
		RevertMessage: "send it back",
	})
	require.Error(t, err)
	assert.True(t, engine.IsIllegalTransition(err))

	stored := f.reload(t, ticket.Number)
	assert.Equal(t, "node-alice", stored.WorkflowStage)
	assert.Empty(t, stored.WorkflowHistory)
	assert.Equal(t, int64(1), stored.Version)
}

func TestExecute_RevertRestoresForwardOrigin(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice", "bob")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-alice", "alice"))
	f := setup(t, wf, ticket)

	_, err := f.engine.Execute(f.ctx, ticket.Number, alice, actions.Forward{
		ToNode:      "node-bob",
		Explanation: "over to you",
	})
	require.NoError(t, err)

	result, err := f.engine.Execute(f.ctx, ticket.Number, bob, actions.Revert{
		RevertMessage: "missing info",
	})
	require.NoError(t, err)

	assert.Equal(t, "node-alice", result.WorkflowStage)
	assert.Equal(t, []string{"alice"}, result.CurrentAssignees)
	assert.Equal(t, models.TicketStatusPending, result.Status)

	assert.Equal(t,
		[]events.EventType{events.TicketForwardedEvent, events.TicketRevertedEvent},
		f.notifier.types())
}

func TestExecute_BlockerCycle(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice", "bob")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-bob", "bob"))
	f := setup(t, wf, ticket)

	result, err := f.engine.Execute(f.ctx, ticket.Number, bob, actions.BlockerReported{
		BlockerDescription: "waiting on vendor response",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusBlocked, result.Status)

	result, err = f.engine.Execute(f.ctx, ticket.Number, bob, actions.BlockerResolved{})
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusInProgress, result.Status)

	stored := f.reload(t, ticket.Number)
	require.Len(t, stored.Blockers, 1)
	assert.True(t, stored.Blockers[0].IsResolved)
	require.NotNil(t, stored.Blockers[0].ResolvedBy)
	assert.Equal(t, "bob", stored.Blockers[0].ResolvedBy.UserID)
	assert.Len(t, stored.WorkflowHistory, 2)
}

func TestExecute_BlockerResolvedWithoutBlockerFails(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-alice", "alice"))
	f := setup(t, wf, ticket)

	_, err := f.engine.Execute(f.ctx, ticket.Number, alice, actions.BlockerResolved{})
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrNoUnresolvedBlocker)
}

func TestExecute_SecondaryContributorPromotedToPrimaryHoldsOneClaim(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice", "carol")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-carol", "carol"))
	f := setup(t, wf, ticket)

	_, err := f.engine.Execute(f.ctx, ticket.Number, carol, actions.InProgress{})
	require.NoError(t, err)

	_, err = f.engine.Execute(f.ctx, ticket.Number, carol, actions.Reopen{
		ToNode:      "node-alice",
		Explanation: "restarting triage",
	})
	require.NoError(t, err)

	result, err := f.engine.Execute(f.ctx, ticket.Number, carol, actions.InProgress{})
	require.NoError(t, err)

	require.NotNil(t, result.PrimaryCredit)
	assert.Equal(t, "carol", result.PrimaryCredit.UserID)
	assert.Empty(t, result.SecondaryCredits)
}

func TestExecute_ReopenMovesToChosenNode(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice", "bob")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-bob", "bob"))
	f := setup(t, wf, ticket)

	_, err := f.engine.Execute(f.ctx, ticket.Number, bob, actions.Close{})
	require.NoError(t, err)

	result, err := f.engine.Execute(f.ctx, ticket.Number, alice, actions.Reopen{
		ToNode:      "node-alice",
		Explanation: "issue came back",
	})
	require.NoError(t, err)

	assert.Equal(t, models.TicketStatusPending, result.Status)
	assert.Equal(t, "node-alice", result.WorkflowStage)
	assert.Equal(t, []string{"alice"}, result.CurrentAssignees)
}

func TestExecute_ReopenToMarkerNodeIsIllegal(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-alice", "alice"))
	f := setup(t, wf, ticket)

	_, err := f.engine.Execute(f.ctx, ticket.Number, alice, actions.Reopen{ToNode: "end"})
	require.Error(t, err)
	assert.True(t, engine.IsIllegalTransition(err))
}

func TestExecute_MissingActorRejected(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-alice", "alice"))
	f := setup(t, wf, ticket)

	_, err := f.engine.Execute(f.ctx, ticket.Number, models.Identity{}, actions.InProgress{})
	require.Error(t, err)
	assert.ErrorIs(t, err, actions.ErrUnresolvableIdentity)
}

func TestExecute_MissingTicketRejected(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-alice", "alice"))
	f := setup(t, wf, ticket)

	_, err := f.engine.Execute(f.ctx, "TCK-missing", alice, actions.InProgress{})
	require.Error(t, err)
	assert.True(t, persistence.IsTicketNotFound(err))
}

func TestExecute_AttachmentFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice", "bob")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-alice", "alice"))

	p := file.NewPersistence(t.TempDir())
	ctx := context.Background()
	require.NoError(t, p.WorkflowRepository().Save(ctx, wf))
	require.NoError(t, p.TicketRepository().Create(ctx, ticket))

	eng := engine.New(p, failingStore{}, &recordingNotifier{}, slog.Default())

	result, err := eng.Execute(ctx, ticket.Number, alice, actions.Forward{
		ToNode:      "node-bob",
		Explanation: "attachment may be lost",
		Attachments: []actions.Attachment{{Name: "report.pdf", Data: []byte("x")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "node-bob", result.WorkflowStage)

	stored, err := p.TicketRepository().GetByNumber(ctx, ticket.Number)
	require.NoError(t, err)
	require.Len(t, stored.WorkflowHistory, 1)
	assert.Empty(t, stored.WorkflowHistory[0].Attachments)
}

func TestExecute_AttachmentsRecordedOnHistory(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice", "bob")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-alice", "alice"))
	f := setup(t, wf, ticket)

	_, err := f.engine.Execute(f.ctx, ticket.Number, alice, actions.Forward{
		ToNode:      "node-bob",
		Explanation: "see attached",
		Attachments: []actions.Attachment{
			{Name: "design.pdf", Data: []byte("pdf"), MimeType: "application/pdf"},
			{Name: "notes.txt", Data: []byte("notes"), MimeType: "text/plain"},
		},
	})
	require.NoError(t, err)

	stored := f.reload(t, ticket.Number)
	require.Len(t, stored.WorkflowHistory, 1)
	assert.Len(t, stored.WorkflowHistory[0].Attachments, 2)
}

// Full lifecycle: primary at the first node, secondary accumulation through
// forward, group formation and revert, resolution notifies the requester.
func TestExecute_EndToEndScenario(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice", "bob")
	ticket := testutil.CreateTestTicket(wf, testutil.AtStage("node-alice", "alice"))
	f := setup(t, wf, ticket)

	_, err := f.engine.Execute(f.ctx, ticket.Number, alice, actions.InProgress{})
	require.NoError(t, err)

	_, err = f.engine.Execute(f.ctx, ticket.Number, alice, actions.Forward{
		ToNode:      "node-bob",
		Explanation: "done",
	})
	require.NoError(t, err)

	_, err = f.engine.Execute(f.ctx, ticket.Number, bob, actions.FormGroup{
		GroupLead:    bob,
		GroupMembers: []models.Identity{bob, carol, dave},
	})
	require.NoError(t, err)

	_, err = f.engine.Execute(f.ctx, ticket.Number, bob, actions.Revert{
		RevertMessage: "missing info",
	})
	require.NoError(t, err)

	result, err := f.engine.Execute(f.ctx, ticket.Number, alice, actions.Resolve{})
	require.NoError(t, err)

	assert.Equal(t, models.TicketStatusResolved, result.Status)
	require.NotNil(t, result.PrimaryCredit)
	assert.Equal(t, "alice", result.PrimaryCredit.UserID)

	got := make([]string, 0, len(result.SecondaryCredits))
	for _, c := range result.SecondaryCredits {
		got = append(got, c.UserID)
	}

	assert.ElementsMatch(t, []string{"bob", "carol", "dave"}, got)

	stored := f.reload(t, ticket.Number)
	assert.Len(t, stored.WorkflowHistory, 5)
	assert.Contains(t, f.notifier.types(), events.TicketResolvedEvent)
}
