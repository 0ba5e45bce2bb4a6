package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/inbox-sync-go/internal/database"
	apperrors "github.com/openclaw/inbox-sync-go/internal/errors"
	"github.com/openclaw/inbox-sync-go/internal/model"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := database.Connect(url)
	require.NoError(t, err)

	schema, err := os.ReadFile("../../migrations/001_inbox_selections.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)
	_, err = db.Exec(`TRUNCATE inbox_selections`)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func TestSelectionRepository_Upsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSelectionRepository(db.DB)
	ctx := context.Background()

	t.Run("returns nil for unknown user", func(t *testing.T) {
		stored, err := repo.FindByUserID(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, stored)
	})

	t.Run("stores and replaces a selection", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, "user-1", model.SelectSpecific("b", "a")))

		stored, err := repo.FindByUserID(ctx, "user-1")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, model.SelectSpecific("b", "a"), stored.Selection)

		require.NoError(t, repo.Upsert(ctx, "user-1", model.SelectAll()))

		stored, err = repo.FindByUserID(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, stored.Selection.IsAll())
	})
}

func TestSelectionRepository_DeleteStale(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSelectionRepository(db.DB)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, "old", model.SelectAll()))
	_, err := db.Exec(`UPDATE inbox_selections SET updated_at = NOW() - INTERVAL '100 days' WHERE user_id = 'old'`)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, "fresh", model.SelectAll()))

	count, err := repo.DeleteStale(ctx, time.Now().Add(-90*24*time.Hour))

	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	fresh, err := repo.FindByUserID(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, fresh)
}

func TestSelectionRepository_DatabaseErrors(t *testing.T) {
	db, err := sqlx.Open("postgres", "postgres://inbox@127.0.0.1:1/inbox?sslmode=disable&connect_timeout=1")
	require.NoError(t, err)
	defer db.Close()
	repo := NewSelectionRepository(db)
	ctx := context.Background()

	_, err = repo.FindByUserID(ctx, "user-1")
	assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))

	err = repo.Upsert(ctx, "user-1", model.SelectAll())
	assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))

	_, err = repo.DeleteStale(ctx, time.Now())
	assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))
}

type memorySelectionRepo struct {
	rows    map[string]model.InboxSelection
	findErr error
}

func (m *memorySelectionRepo) FindByUserID(ctx context.Context, userID string) (*model.StoredSelection, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	sel, ok := m.rows[userID]
	if !ok {
		return nil, nil
	}
	return &model.StoredSelection{UserID: userID, Selection: sel}, nil
}

func (m *memorySelectionRepo) Upsert(ctx context.Context, userID string, selection model.InboxSelection) error {
	m.rows[userID] = selection
	return nil
}

func (m *memorySelectionRepo) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func TestUserSelections(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to all without a stored row", func(t *testing.T) {
		store := NewUserSelections(&memorySelectionRepo{rows: map[string]model.InboxSelection{}}, "user-1")

		sel, err := store.GetSelection(ctx)

		require.NoError(t, err)
		assert.True(t, sel.IsAll())
	})

	t.Run("round trips through the repository", func(t *testing.T) {
		repo := &memorySelectionRepo{rows: map[string]model.InboxSelection{}}
		store := NewUserSelections(repo, "user-1")

		require.NoError(t, store.SaveSelection(ctx, model.SelectSpecific("c")))
		sel, err := store.GetSelection(ctx)

		require.NoError(t, err)
		assert.Equal(t, model.SelectSpecific("c"), sel)
		assert.NotContains(t, repo.rows, "user-2")
	})

	t.Run("a refreshed session of the same user keeps the selection", func(t *testing.T) {
		repo := &memorySelectionRepo{rows: map[string]model.InboxSelection{}}
		require.NoError(t, NewUserSelections(repo, "user-1").SaveSelection(ctx, model.SelectSpecific("a", "b")))

		sel, err := NewUserSelections(repo, "user-1").GetSelection(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.SelectSpecific("a", "b"), sel)

		other, err := NewUserSelections(repo, "user-2").GetSelection(ctx)
		require.NoError(t, err)
		assert.True(t, other.IsAll())
	})

	t.Run("surfaces repository errors", func(t *testing.T) {
		store := NewUserSelections(&memorySelectionRepo{findErr: errors.New("db down")}, "user-1")

		_, err := store.GetSelection(ctx)

		assert.Error(t, err)
	})
}
