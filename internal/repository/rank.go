package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskbot/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var userRankColumns = []string{
	"user_id",
	"current_rank",
	"tasks_completed",
	"referrals_count",
	"channels_subscribed",
	"bonus_percentage",
	"platinum_active",
	"platinum_expires_at",
	"updated_at",
}

type userRank struct {
	UserID             int64           `db:"user_id"`
	CurrentRank        string          `db:"current_rank"`
	TasksCompleted     int             `db:"tasks_completed"`
	ReferralsCount     int             `db:"referrals_count"`
	ChannelsSubscribed bool            `db:"channels_subscribed"`
	BonusPercentage    decimal.Decimal `db:"bonus_percentage"`
	PlatinumActive     bool            `db:"platinum_active"`
	PlatinumExpiresAt  *time.Time      `db:"platinum_expires_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

func (r *userRank) toModel() *model.UserRank {
	return &model.UserRank{
		UserID:             r.UserID,
		CurrentRank:        model.Rank(r.CurrentRank),
		TasksCompleted:     r.TasksCompleted,
		ReferralsCount:     r.ReferralsCount,
		ChannelsSubscribed: r.ChannelsSubscribed,
		BonusPercentage:    r.BonusPercentage,
		PlatinumActive:     r.PlatinumActive,
		PlatinumExpiresAt:  r.PlatinumExpiresAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func (r *Repository) GetUserRank(ctx context.Context, telegramID int64) (*model.UserRank, error) {
	query, args, err := squirrel.
		Select(userRankColumns...).
		From("user_ranks").
		Where(squirrel.Eq{"user_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rank userRank
	err = sqlx.GetContext(ctx, r.conn(ctx), &rank, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user rank: %w", err)
	}

	return rank.toModel(), nil
}

// EnsureUserRank lazily creates the stone row for the user, seeded from the
// user's counters, and returns the current row.
func (r *Repository) EnsureUserRank(ctx context.Context, telegramID int64, stoneBonus decimal.Decimal) (*model.UserRank, error) {
	rank, err := r.GetUserRank(ctx, telegramID)
	if err == nil {
		return rank, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	_, err = r.conn(ctx).ExecContext(ctx, `
        INSERT INTO user_ranks (user_id, current_rank, tasks_completed, referrals_count, bonus_percentage, updated_at)
        SELECT telegram_id, $2, tasks_completed, referrals, $3, $4
        FROM users
        WHERE telegram_id = $1
        ON CONFLICT (user_id) DO NOTHING`,
		telegramID, string(model.RankStone), stoneBonus, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user rank: %w", err)
	}

	return r.GetUserRank(ctx, telegramID)
}

func (r *Repository) SaveUserRank(ctx context.Context, rank *model.UserRank) error {
	query, args, err := squirrel.
		Update("user_ranks").
		SetMap(map[string]interface{}{
			"current_rank":        string(rank.CurrentRank),
			"tasks_completed":     rank.TasksCompleted,
			"referrals_count":     rank.ReferralsCount,
			"channels_subscribed": rank.ChannelsSubscribed,
			"bonus_percentage":    rank.BonusPercentage,
			"platinum_active":     rank.PlatinumActive,
			"platinum_expires_at": rank.PlatinumExpiresAt,
			"updated_at":          rank.UpdatedAt,
		}).
		Where(squirrel.Eq{"user_id": rank.UserID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build rank update query: %w", err)
	}

	result, err := r.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user rank: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListExpiredPlatinum returns users whose platinum subscription ended before now.
func (r *Repository) ListExpiredPlatinum(ctx context.Context, now time.Time) ([]int64, error) {
	query, args, err := squirrel.
		Select("user_id").
		From("user_ranks").
		Where(squirrel.And{
			squirrel.Eq{"platinum_active": true},
			squirrel.Lt{"platinum_expires_at": now},
		}).
		OrderBy("platinum_expires_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var ids []int64
	err = sqlx.SelectContext(ctx, r.conn(ctx), &ids, query, args...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to list expired platinum: %w", err)
	}

	return ids, nil
}
