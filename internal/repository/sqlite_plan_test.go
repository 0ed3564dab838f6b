package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/alexanderramin/atelier/internal/plan"
	"github.com/alexanderramin/atelier/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlanRepo(t *testing.T) *SQLitePlanRepo {
	t.Helper()
	return NewSQLitePlanRepo(testutil.NewTestUoW(testutil.NewTestDB(t)))
}

func strPtr(s string) *string { return &s }

func TestPlanRepo_SaveAndLoad(t *testing.T) {
	repo := newPlanRepo(t)
	ctx := context.Background()

	p := testutil.NewTestPlan("Casa Azul",
		testutil.WithShortID("CASA01"),
		testutil.WithBriefing(domain.Briefing{"type": "residential", "site": map[string]any{"area_m2": 180.0}}),
		testutil.WithStage("Design", "Concept", "Layout"),
		testutil.WithStage("Approval"),
	)
	due := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	p.Stages[0].Tasks[1].Assignee = strPtr("bob")
	p.Stages[0].Tasks[1].DueDate = &due
	p.Stages[0].Tasks[1].EstimatedHours = 12.5

	require.NoError(t, repo.SavePlan(ctx, p))

	got, err := repo.LoadPlan(ctx, p.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestPlanRepo_LoadPlan_NotFound(t *testing.T) {
	repo := newPlanRepo(t)

	_, err := repo.LoadPlan(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPlanRepo_LoadByShortID_CaseInsensitive(t *testing.T) {
	repo := newPlanRepo(t)
	ctx := context.Background()
	p := testutil.NewTestPlan("Loja", testutil.WithShortID("LOJA07"), testutil.WithStage("Design", "Concept"))
	require.NoError(t, repo.SavePlan(ctx, p))

	got, err := repo.LoadByShortID(ctx, "loja07")
	require.NoError(t, err)
	assert.Equal(t, p.ProjectID, got.ProjectID)
	assert.Len(t, got.Stages[0].Tasks, 1)

	_, err = repo.LoadByShortID(ctx, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// The store drives the repository exactly as production does.
func TestPlanRepo_BehindStore_RoundTripsHistory(t *testing.T) {
	repo := newPlanRepo(t)
	ctx := context.Background()
	store := plan.NewStore(plan.WithPersister(repo), plan.WithClock(testutil.SteppingClock()))

	p := testutil.NewTestPlan("Casa Azul", testutil.WithStage("Design", "Concept", "Layout"), testutil.WithStage("Approval"))
	require.NoError(t, store.Install(ctx, "alice", p))

	design := p.Stages[0]
	_, err := store.CreateTask(ctx, "bob", p.ProjectID, design.ID, "Site visit", nil, plan.TaskOptions{Assignee: strPtr("bob")})
	require.NoError(t, err)
	require.NoError(t, store.UpdateStatus(ctx, "alice", p.ProjectID, design.Tasks[0].ID, "in_progress"))
	require.NoError(t, store.Reorder(ctx, "alice", p.ProjectID, nil, []string{p.Stages[1].ID, design.ID}))
	require.NoError(t, store.DeleteTask(ctx, "alice", p.ProjectID, design.Tasks[1].ID))
	require.NoError(t, store.Archive(ctx, "alice", p.ProjectID))

	live, err := store.Get(ctx, p.ProjectID)
	require.NoError(t, err)

	stored, err := repo.LoadPlan(ctx, p.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, live, stored)
	require.Len(t, stored.History, 5)
	assert.Nil(t, stored.History[0].Before)
	assert.Nil(t, stored.History[3].After)
	assert.Equal(t, domain.PlanArchived, stored.Status)
}

func TestPlanRepo_ListPlanIDs(t *testing.T) {
	repo := newPlanRepo(t)
	ctx := context.Background()

	a := testutil.NewTestPlan("Alpha")
	b := testutil.NewTestPlan("Beta")
	b.CreatedAt = a.CreatedAt.Add(time.Hour)
	require.NoError(t, repo.SavePlan(ctx, b))
	require.NoError(t, repo.SavePlan(ctx, a))

	ids, err := repo.ListPlanIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ProjectID, b.ProjectID}, ids)
}

func TestPlanRepo_FailedSaveRollsBack(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	good := NewSQLitePlanRepo(testutil.NewTestUoW(database))

	p := testutil.NewTestPlan("Casa", testutil.WithStage("Design", "Concept"))
	require.NoError(t, good.SavePlan(ctx, p))

	// Exec order: upsert project, delete tasks, delete stages, insert stage, insert task.
	boom := errors.New("disk full")
	failing := NewSQLitePlanRepo(&testutil.FailOnNthExecUoW{DB: database, FailOn: 5, Err: boom})

	changed := p.Clone()
	changed.Name = "Casa Renomeada"
	changed.Stages[0].Tasks[0].Label = "Concept v2"
	require.ErrorIs(t, failing.SavePlan(ctx, changed), boom)

	got, err := good.LoadPlan(ctx, p.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, p, got, "a failed save must leave the stored plan intact")
}

func TestPlanRepo_StoreAtomicOnPersistFailure(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	boom := errors.New("disk full")

	p := testutil.NewTestPlan("Casa", testutil.WithStage("Design", "Concept"))
	require.NoError(t, NewSQLitePlanRepo(testutil.NewTestUoW(database)).SavePlan(ctx, p))

	store := plan.NewStore(plan.WithPersister(NewSQLitePlanRepo(&testutil.FailOnNthExecUoW{DB: database, FailOn: 2, Err: boom})))
	_, err := store.CreateStage(ctx, "alice", p.ProjectID, "Approval", nil)
	require.ErrorIs(t, err, boom)

	live, err := store.Get(ctx, p.ProjectID)
	require.NoError(t, err)
	assert.Len(t, live.Stages, 1)
	assert.Empty(t, live.History)
}
