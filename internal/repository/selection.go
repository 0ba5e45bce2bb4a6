package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/openclaw/inbox-sync-go/internal/database"
	apperrors "github.com/openclaw/inbox-sync-go/internal/errors"
	"github.com/openclaw/inbox-sync-go/internal/inbox"
	"github.com/openclaw/inbox-sync-go/internal/model"
)

type SelectionRepository interface {
	FindByUserID(ctx context.Context, userID string) (*model.StoredSelection, error)
	Upsert(ctx context.Context, userID string, selection model.InboxSelection) error
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

type selectionRow struct {
	UserID        string         `db:"user_id"`
	SelectionType string         `db:"selection_type"`
	InboxIDs      pq.StringArray `db:"inbox_ids"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r selectionRow) toModel() *model.StoredSelection {
	selection := model.SelectAll()
	if model.SelectionType(r.SelectionType) == model.SelectionTypeSpecific && len(r.InboxIDs) > 0 {
		selection = model.SelectSpecific(r.InboxIDs...)
	}
	return &model.StoredSelection{
		UserID:    r.UserID,
		Selection: selection,
		UpdatedAt: r.UpdatedAt,
	}
}

type selectionRepo struct {
	db database.DBTX
}

func NewSelectionRepository(db *sqlx.DB) SelectionRepository {
	return &selectionRepo{db: db}
}

func (r *selectionRepo) FindByUserID(ctx context.Context, userID string) (*model.StoredSelection, error) {
	var row selectionRow
	err := r.db.GetContext(ctx, &row, `
		SELECT user_id, selection_type, inbox_ids, updated_at
		FROM inbox_selections
		WHERE user_id = $1
	`, userID)
	found, err := HandleNotFound(&row, err)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if found == nil {
		return nil, nil
	}
	return found.toModel(), nil
}

func (r *selectionRepo) Upsert(ctx context.Context, userID string, selection model.InboxSelection) error {
	selectionType := model.SelectionTypeAll
	ids := pq.StringArray{}
	if !selection.IsAll() {
		selectionType = model.SelectionTypeSpecific
		ids = pq.StringArray(selection.InboxIDs)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO inbox_selections (user_id, selection_type, inbox_ids, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET selection_type = EXCLUDED.selection_type,
			inbox_ids = EXCLUDED.inbox_ids,
			updated_at = NOW()
	`, userID, string(selectionType), ids)
	if err != nil {
		return apperrors.Database(err)
	}
	return nil
}

func (r *selectionRepo) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM inbox_selections WHERE updated_at < $1
	`, before)
	if err != nil {
		return 0, apperrors.Database(err)
	}
	return result.RowsAffected()
}

// UserSelections adapts the repository to one user's selection store.
type UserSelections struct {
	repo   SelectionRepository
	userID string
}

var _ inbox.SelectionStore = (*UserSelections)(nil)

func NewUserSelections(repo SelectionRepository, userID string) *UserSelections {
	return &UserSelections{repo: repo, userID: userID}
}

func (s *UserSelections) GetSelection(ctx context.Context) (model.InboxSelection, error) {
	stored, err := s.repo.FindByUserID(ctx, s.userID)
	if err != nil {
		return model.InboxSelection{}, err
	}
	if stored == nil {
		return model.SelectAll(), nil
	}
	return stored.Selection, nil
}

func (s *UserSelections) SaveSelection(ctx context.Context, selection model.InboxSelection) error {
	return s.repo.Upsert(ctx, s.userID, selection)
}
