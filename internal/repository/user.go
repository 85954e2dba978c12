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

var userColumns = []string{
	"telegram_id",
	"handle",
	"username",
	"referrer_id",
	"referrals",
	"balance",
	"total_earned",
	"tasks_completed",
	"is_admin",
	"registration_date",
}

type User struct {
	TelegramID       int64           `db:"telegram_id"`
	Handle           string          `db:"handle"`
	Username         string          `db:"username"`
	ReferrerID       *int64          `db:"referrer_id"`
	Referrals        int             `db:"referrals"`
	Balance          decimal.Decimal `db:"balance"`
	TotalEarned      decimal.Decimal `db:"total_earned"`
	TasksCompleted   int             `db:"tasks_completed"`
	IsAdmin          bool            `db:"is_admin"`
	RegistrationDate time.Time       `db:"registration_date"`
}

func (u *User) toModel() *model.User {
	return &model.User{
		TelegramID:       u.TelegramID,
		Handle:           u.Handle,
		Username:         u.Username,
		ReferrerID:       u.ReferrerID,
		Referrals:        u.Referrals,
		Balance:          u.Balance,
		TotalEarned:      u.TotalEarned,
		TasksCompleted:   u.TasksCompleted,
		IsAdmin:          u.IsAdmin,
		RegistrationDate: u.RegistrationDate,
	}
}

// CreateUser inserts the user and credits the referrer, if any, with one referral.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	return r.Transaction(ctx, func(ctx context.Context) error {
		query, args, err := squirrel.
			Insert("users").
			SetMap(map[string]interface{}{
				"telegram_id":       user.TelegramID,
				"handle":            user.Handle,
				"username":          user.Username,
				"referrer_id":       user.ReferrerID,
				"registration_date": user.RegistrationDate,
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build user insert query: %w", err)
		}

		_, err = r.conn(ctx).ExecContext(ctx, query, args...)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyExists
			}
			return fmt.Errorf("failed to insert user: %w", err)
		}

		if user.ReferrerID == nil {
			return nil
		}

		updateQuery, updateArgs, err := squirrel.
			Update("users").
			Set("referrals", squirrel.Expr("referrals + 1")).
			Where(squirrel.Eq{"telegram_id": *user.ReferrerID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build referrer update query: %w", err)
		}

		result, err := r.conn(ctx).ExecContext(ctx, updateQuery, updateArgs...)
		if err != nil {
			return fmt.Errorf("failed to update referrer: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return ErrNotFound
		}

		rankQuery, rankArgs, err := squirrel.
			Update("user_ranks").
			Set("referrals_count", squirrel.Expr("referrals_count + 1")).
			Set("updated_at", time.Now().UTC()).
			Where(squirrel.Eq{"user_id": *user.ReferrerID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build referrer rank update query: %w", err)
		}

		_, err = r.conn(ctx).ExecContext(ctx, rankQuery, rankArgs...)
		if err != nil {
			return fmt.Errorf("failed to update referrer rank: %w", err)
		}

		return nil
	})
}

func (r *Repository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	query, args, err := squirrel.
		Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"telegram_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var user User
	err = sqlx.GetContext(ctx, r.conn(ctx), &user, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return user.toModel(), nil
}

// LockUser reads the user row with FOR UPDATE. Every balance, counter and rank
// mutation of a user takes this lock first, which serializes them per user.
func (r *Repository) LockUser(ctx context.Context, telegramID int64) (*model.User, error) {
	if !inTx(ctx) {
		return nil, errors.New("LockUser requires a transaction")
	}

	query, args, err := squirrel.
		Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"telegram_id": telegramID}).
		Suffix("FOR UPDATE").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var user User
	err = sqlx.GetContext(ctx, r.conn(ctx), &user, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}

	return user.toModel(), nil
}

// IncrementTaskCounters bumps the completed-task and total-earned counters and
// returns the new completed-task count.
func (r *Repository) IncrementTaskCounters(ctx context.Context, telegramID int64, earned decimal.Decimal) (int, error) {
	query, args, err := squirrel.
		Update("users").
		Set("tasks_completed", squirrel.Expr("tasks_completed + 1")).
		Set("total_earned", squirrel.Expr("total_earned + ?", earned)).
		Where(squirrel.Eq{"telegram_id": telegramID}).
		Suffix("RETURNING tasks_completed").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build counters update query: %w", err)
	}

	var tasksCompleted int
	err = sqlx.GetContext(ctx, r.conn(ctx), &tasksCompleted, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to update task counters: %w", err)
	}

	return tasksCompleted, nil
}
