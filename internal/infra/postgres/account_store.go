package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gamification-service/internal/domain"
	"github.com/uptrace/bun"
)

// accountRow is the points_accounts record. Counters are columns for querying; the full account
// (achievements, recent actions, action stats) lives in the snapshot JSONB.
type accountRow struct {
	bun.BaseModel `bun:"table:points_accounts,alias:pa"`

	UserID         string               `bun:"user_id,pk"`
	Name           string               `bun:"name,notnull"`
	CurrentPoints  int                  `bun:"current_points,notnull"`
	LifetimePoints int                  `bun:"lifetime_points,notnull"`
	Level          int                  `bun:"level,notnull"`
	Version        int                  `bun:"version,notnull"`
	Snapshot       domain.PointsAccount `bun:"snapshot,type:jsonb,notnull"`
	CreatedAt      time.Time            `bun:"created_at,notnull"`
	UpdatedAt      time.Time            `bun:"updated_at,notnull"`
}

func toRow(a domain.PointsAccount) *accountRow {
	return &accountRow{
		UserID:         a.UserID,
		Name:           a.Name,
		CurrentPoints:  a.CurrentPoints,
		LifetimePoints: a.LifetimePoints,
		Level:          a.Level,
		Version:        a.Version,
		Snapshot:       a,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func (r *accountRow) account() domain.PointsAccount {
	a := r.Snapshot
	a.UserID = r.UserID
	a.Version = r.Version
	if a.ActionStats == nil {
		a.ActionStats = map[string]domain.ActionStats{}
	}
	return a
}

// AccountStore persists points accounts with an optimistic version check, so several service
// instances can award points to the same user without losing updates.
type AccountStore struct {
	db *bun.DB
}

func NewAccountStore(db *bun.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Get(ctx context.Context, userID string) (domain.PointsAccount, error) {
	row := new(accountRow)
	err := s.db.NewSelect().Model(row).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PointsAccount{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return domain.PointsAccount{}, fmt.Errorf("select points account: %w", err)
	}
	return row.account(), nil
}

func (s *AccountStore) Save(ctx context.Context, account domain.PointsAccount, expectedVersion int) error {
	row := toRow(account)

	var (
		res sql.Result
		err error
	)
	if expectedVersion == 0 {
		res, err = s.db.NewInsert().Model(row).On("CONFLICT (user_id) DO NOTHING").Exec(ctx)
	} else {
		res, err = s.db.NewUpdate().Model(row).WherePK().Where("version = ?", expectedVersion).Exec(ctx)
	}
	if err != nil {
		return fmt.Errorf("save points account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save points account: %w", err)
	}
	if n != 1 {
		return domain.ErrVersionConflict
	}
	return nil
}

// List returns every account, highest lifetime points first.
func (s *AccountStore) List(ctx context.Context) ([]domain.PointsAccount, error) {
	var rows []accountRow
	if err := s.db.NewSelect().Model(&rows).Order("lifetime_points DESC", "user_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list points accounts: %w", err)
	}
	out := make([]domain.PointsAccount, len(rows))
	for i := range rows {
		out[i] = rows[i].account()
	}
	return out, nil
}
