package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ipecgroup/budget-portal/internal/application/port"
	"github.com/ipecgroup/budget-portal/internal/domain/entity"
	"github.com/ipecgroup/budget-portal/internal/domain/event"
	"github.com/ipecgroup/budget-portal/internal/domain/workflow"
	"github.com/ipecgroup/budget-portal/internal/infrastructure/persistence/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// A pool of :memory: connections would each get their own database.
	db.SetMaxOpenConns(1)

	schema, err := os.ReadFile("../../../../migrations/001_initial_schema.sql")
	require.NoError(t, err)

	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO users (id, username) VALUES (1, 'ahmadi'), (2, 'karimi')`)
	require.NoError(t, err)

	return db
}

func sampleRequest(creatorID int64) *entity.PaymentRequest {
	scope := workflow.UnitSite
	now := time.Now().UTC().Truncate(time.Second)
	return &entity.PaymentRequest{
		Serial:      "1403-0042",
		DateJalali:  "1403/06/10",
		Scope:       scope,
		Title:       "خرید سیمان",
		Amount:      2_000_000,
		Status:      entity.StatusPending,
		CreatedByID: creatorID,
		History: event.Log{
			event.NewCreated(creatorID, scope, []workflow.UnitKind{scope}, []string{"کارپرداز"}),
			event.NewStepSet(scope, workflow.Step{Role: workflow.RoleProjectControl, Index: 1}),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRequestRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db, zap.NewNop())
	ctx := context.Background()

	req := sampleRequest(1)
	require.NoError(t, repo.Create(ctx, req))
	require.NotZero(t, req.ID)
	assert.Equal(t, int64(0), req.Version)

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, req.Title, got.Title)
	assert.Equal(t, req.Serial, got.Serial)
	assert.Equal(t, workflow.UnitSite, got.Scope)
	assert.Equal(t, entity.StatusPending, got.Status)
	assert.Equal(t, int64(1), got.CreatedByID)
	assert.Equal(t, int64(0), got.Version)

	require.Len(t, got.History, 2)
	assert.Equal(t, event.TypeCreated, got.History[0].Type)

	step, ok := got.CurrentStep()
	require.True(t, ok)
	assert.Equal(t, workflow.RoleProjectControl, step.Role)
	assert.Equal(t, 1, step.Index)
}

func TestRequestRepository_GetByID_Missing(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db, zap.NewNop())

	got, err := repo.GetByID(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRequestRepository_Update_VersionGuard(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db, zap.NewNop())
	ctx := context.Background()

	req := sampleRequest(1)
	require.NoError(t, repo.Create(ctx, req))

	req.History = append(req.History,
		event.NewAction(event.TypeApproved, 2, workflow.Step{Role: workflow.RoleProjectControl, Index: 1}, ""),
		event.NewStepSet(req.Scope, workflow.Step{Role: workflow.RoleAccounting, Index: 2}),
	)
	req.UpdatedAt = time.Now().UTC()

	require.NoError(t, repo.Update(ctx, req, 0))
	assert.Equal(t, int64(1), req.Version)

	// A writer holding the stale version must lose.
	err := repo.Update(ctx, req, 0)
	assert.True(t, errors.Is(err, port.ErrVersionConflict))

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	require.Len(t, got.History, 4)

	step, ok := got.CurrentStep()
	require.True(t, ok)
	assert.Equal(t, workflow.RoleAccounting, step.Role)
}

func TestRequestRepository_Delete(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db, zap.NewNop())
	ctx := context.Background()

	req := sampleRequest(1)
	require.NoError(t, repo.Create(ctx, req))

	require.NoError(t, repo.Delete(ctx, req.ID))

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting an already-deleted row reports not-found, not a raw sql error.
	err = repo.Delete(ctx, req.ID)
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestRequestRepository_List(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db, zap.NewNop())
	ctx := context.Background()

	first := sampleRequest(1)
	require.NoError(t, repo.Create(ctx, first))

	second := sampleRequest(2)
	second.Scope = workflow.UnitCash
	second.Title = "شارژ تنخواه"
	second.Status = entity.StatusApproved
	require.NoError(t, repo.Create(ctx, second))

	t.Run("newest first, no filter", func(t *testing.T) {
		rows, err := repo.List(ctx, port.RequestFilter{})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, second.ID, rows[0].ID)
		assert.Equal(t, first.ID, rows[1].ID)
	})

	t.Run("scope filter", func(t *testing.T) {
		rows, err := repo.List(ctx, port.RequestFilter{Scope: "cash"})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, second.ID, rows[0].ID)
	})

	t.Run("status filter", func(t *testing.T) {
		rows, err := repo.List(ctx, port.RequestFilter{Status: "pending"})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, first.ID, rows[0].ID)
	})

	t.Run("text filter over title", func(t *testing.T) {
		rows, err := repo.List(ctx, port.RequestFilter{Text: "تنخواه"})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, second.ID, rows[0].ID)
	})

	t.Run("limit", func(t *testing.T) {
		rows, err := repo.List(ctx, port.RequestFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})
}

func TestRequestRepository_UpdateWithinTransaction(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db, zap.NewNop())
	txManager := sqlite.NewDB(db, zap.NewNop())
	ctx := context.Background()

	req := sampleRequest(1)
	require.NoError(t, repo.Create(ctx, req))

	// A failing transaction must roll the write back.
	boom := errors.New("boom")
	err := txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		req.Title = "تغییر ناتمام"
		if err := repo.Update(txCtx, req, 0); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "خرید سیمان", got.Title)
	assert.Equal(t, int64(0), got.Version)
}

func TestMembershipRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(`
		INSERT INTO units (id, name, code) VALUES (1, 'امور مالی', 'finance'), (2, 'کارگاه', 'site');
		INSERT INTO roles (id, name) VALUES (1, 'حسابدار'), (2, 'مدیر مالی');
		INSERT INTO user_units (user_id, unit_id) VALUES (1, 1), (1, 2);
		INSERT INTO user_roles (user_id, role_id) VALUES (1, 1), (1, 2);
	`)
	require.NoError(t, err)

	repo := NewMembershipRepository(db, zap.NewNop())

	units, err := repo.UnitsOf(ctx, 1)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "finance", units[0].Code)
	assert.Equal(t, "site", units[1].Code)

	names, err := repo.RoleNamesOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"حسابدار", "مدیر مالی"}, names)

	units, err = repo.UnitsOf(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestUserRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db, zap.NewNop())

	user, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "ahmadi", user.Username)

	user, err = repo.GetByUsername(ctx, "karimi")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(2), user.ID)

	user, err = repo.GetByID(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, user)

	user, err = repo.GetByUsername(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, user)
}
