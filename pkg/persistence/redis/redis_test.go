package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivedesk/hivedesk/pkg/models"
	"github.com/hivedesk/hivedesk/pkg/persistence"
	"github.com/hivedesk/hivedesk/pkg/persistence/redis"
	"github.com/hivedesk/hivedesk/pkg/testutil"
)

func setupRedis(t *testing.T) (*redis.Persistence, context.Context) {
	t.Helper()

	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
	})

	return redis.NewPersistenceWithClient(client), context.Background()
}

func TestTicketRepository_CreateAndGet(t *testing.T) {
	t.Parallel()

	p, ctx := setupRedis(t)
	ticket := testutil.CreateTestTicket(testutil.LinearWorkflow("alice"))

	require.NoError(t, p.TicketRepository().Create(ctx, ticket))

	err := p.TicketRepository().Create(ctx, ticket)
	assert.ErrorIs(t, err, persistence.ErrTicketAlreadyExists)

	loaded, err := p.TicketRepository().GetByNumber(ctx, ticket.Number)
	require.NoError(t, err)
	assert.Equal(t, ticket.Number, loaded.Number)
	assert.Equal(t, int64(1), loaded.Version)

	_, err = p.TicketRepository().GetByNumber(ctx, "TCK-missing")
	assert.True(t, persistence.IsTicketNotFound(err))
}

func TestTicketRepository_SaveIsConditional(t *testing.T) {
	t.Parallel()

	p, ctx := setupRedis(t)
	ticket := testutil.CreateTestTicket(testutil.LinearWorkflow("alice"))
	require.NoError(t, p.TicketRepository().Create(ctx, ticket))

	first, err := p.TicketRepository().GetByNumber(ctx, ticket.Number)
	require.NoError(t, err)

	second, err := p.TicketRepository().GetByNumber(ctx, ticket.Number)
	require.NoError(t, err)

	first.Status = models.TicketStatusInProgress
	require.NoError(t, p.TicketRepository().Save(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Status = models.TicketStatusBlocked
	err = p.TicketRepository().Save(ctx, second)
	require.Error(t, err)
	assert.True(t, persistence.IsConflict(err))

	loaded, err := p.TicketRepository().GetByNumber(ctx, ticket.Number)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusInProgress, loaded.Status)
}

func TestTicketRepository_List(t *testing.T) {
	t.Parallel()

	p, ctx := setupRedis(t)
	wf := testutil.LinearWorkflow("alice", "bob")

	assigned := testutil.CreateTestTicket(wf, testutil.AtStage("node-alice", "alice"))
	other := testutil.CreateTestTicket(wf, testutil.AtStage("node-bob", "bob"))
	require.NoError(t, p.TicketRepository().Create(ctx, assigned))
	require.NoError(t, p.TicketRepository().Create(ctx, other))

	tickets, err := p.TicketRepository().List(ctx, persistence.ListTicketsOptions{AssigneeID: "bob"})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, other.Number, tickets[0].Number)
}

func TestWorkflowRepository_RoundTrip(t *testing.T) {
	t.Parallel()

	p, ctx := setupRedis(t)
	wf := testutil.LinearWorkflow("alice")

	require.NoError(t, p.WorkflowRepository().Save(ctx, wf))

	loaded, err := p.WorkflowRepository().GetByID(ctx, wf.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Nodes, 3)

	workflows, err := p.WorkflowRepository().List(ctx)
	require.NoError(t, err)
	assert.Len(t, workflows, 1)

	require.NoError(t, p.WorkflowRepository().Delete(ctx, wf.ID))

	_, err = p.WorkflowRepository().GetByID(ctx, wf.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}
