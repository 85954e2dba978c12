package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskbot/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var attemptColumns = []string{
	"ut.id",
	"ut.user_id",
	"ut.task_id",
	"ut.status",
	"ut.reward",
	"ut.reject_reason",
	"ut.started_at",
	"ut.submitted_at",
	"ut.completed_at",
}

type attempt struct {
	ID           uuid.UUID           `db:"id"`
	UserID       int64               `db:"user_id"`
	TaskID       uuid.UUID           `db:"task_id"`
	Status       string              `db:"status"`
	Reward       decimal.NullDecimal `db:"reward"`
	RejectReason *string             `db:"reject_reason"`
	StartedAt    time.Time           `db:"started_at"`
	SubmittedAt  *time.Time          `db:"submitted_at"`
	CompletedAt  *time.Time          `db:"completed_at"`
}

func (a *attempt) toModel() *model.Attempt {
	return &model.Attempt{
		ID:           a.ID,
		UserID:       a.UserID,
		TaskID:       a.TaskID,
		Status:       model.AttemptStatus(a.Status),
		Reward:       a.Reward,
		RejectReason: a.RejectReason,
		StartedAt:    a.StartedAt,
		SubmittedAt:  a.SubmittedAt,
		CompletedAt:  a.CompletedAt,
	}
}

type pendingAttempt struct {
	attempt
	Username  string          `db:"username"`
	TaskTitle string          `db:"task_title"`
	RewardMin decimal.Decimal `db:"reward_min"`
	RewardMax decimal.Decimal `db:"reward_max"`
}

// CreateAttempt inserts a new attempt. The partial unique index on
// (user_id, task_id) for in-flight statuses turns a concurrent duplicate start
// into ErrAlreadyExists.
func (r *Repository) CreateAttempt(ctx context.Context, a *model.Attempt) error {
	query, args, err := squirrel.
		Insert("user_tasks").
		SetMap(map[string]interface{}{
			"id":         a.ID,
			"user_id":    a.UserID,
			"task_id":    a.TaskID,
			"status":     string(a.Status),
			"started_at": a.StartedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build attempt insert query: %w", err)
	}

	if _, err := r.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert attempt: %w", err)
	}

	return nil
}

func (r *Repository) getAttempt(ctx context.Context, where squirrel.Sqlizer, lock bool) (*model.Attempt, error) {
	builder := squirrel.
		Select(attemptColumns...).
		From("user_tasks ut").
		Where(where).
		PlaceholderFormat(squirrel.Dollar)
	if lock {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var a attempt
	err = sqlx.GetContext(ctx, r.conn(ctx), &a, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	return a.toModel(), nil
}

func (r *Repository) GetAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return r.getAttempt(ctx, squirrel.Eq{"ut.id": id}, false)
}

// LockAttempt reads the attempt with FOR UPDATE inside the current transaction.
func (r *Repository) LockAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return r.getAttempt(ctx, squirrel.Eq{"ut.id": id}, inTx(ctx))
}

// GetActiveAttempt returns the in_progress or submitted attempt of the user for the task.
func (r *Repository) GetActiveAttempt(ctx context.Context, telegramID int64, taskID uuid.UUID) (*model.Attempt, error) {
	return r.getAttempt(ctx, squirrel.Eq{
		"ut.user_id": telegramID,
		"ut.task_id": taskID,
		"ut.status":  []string{string(model.AttemptInProgress), string(model.AttemptSubmitted)},
	}, inTx(ctx))
}

// CompletedStats returns how many times the user completed the task and when last.
func (r *Repository) CompletedStats(ctx context.Context, telegramID int64, taskID uuid.UUID) (int, *time.Time, error) {
	query, args, err := squirrel.
		Select("COUNT(*) AS completed_count", "MAX(completed_at) AS last_completed_at").
		From("user_tasks").
		Where(squirrel.Eq{
			"user_id": telegramID,
			"task_id": taskID,
			"status":  string(model.AttemptCompleted),
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build query: %w", err)
	}

	var stats struct {
		CompletedCount  int        `db:"completed_count"`
		LastCompletedAt *time.Time `db:"last_completed_at"`
	}
	if err := sqlx.GetContext(ctx, r.conn(ctx), &stats, query, args...); err != nil {
		return 0, nil, fmt.Errorf("failed to count completed attempts: %w", err)
	}

	return stats.CompletedCount, stats.LastCompletedAt, nil
}

// TransitionAttempt persists the mutable fields of a, guarded on the row still
// being in status from. A lost race yields ErrConflict.
func (r *Repository) TransitionAttempt(ctx context.Context, a *model.Attempt, from model.AttemptStatus) error {
	query, args, err := squirrel.
		Update("user_tasks").
		SetMap(map[string]interface{}{
			"status":        string(a.Status),
			"reward":        a.Reward,
			"reject_reason": a.RejectReason,
			"submitted_at":  a.SubmittedAt,
			"completed_at":  a.CompletedAt,
		}).
		Where(squirrel.Eq{
			"id":     a.ID,
			"status": string(from),
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build attempt update query: %w", err)
	}

	result, err := r.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrConflict
	}

	return nil
}

// DeleteInProgressAttempt removes an attempt that has not been submitted yet.
func (r *Repository) DeleteInProgressAttempt(ctx context.Context, id uuid.UUID) error {
	query, args, err := squirrel.
		Delete("user_tasks").
		Where(squirrel.Eq{
			"id":     id,
			"status": string(model.AttemptInProgress),
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete attempt: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListPendingAttempts returns submitted attempts, oldest first, optionally
// filtered by a case-insensitive search over username, user id and task title.
func (r *Repository) ListPendingAttempts(ctx context.Context, search string, limit, offset int) ([]*model.PendingAttempt, error) {
	columns := append([]string{}, attemptColumns...)
	columns = append(columns, "u.username", "t.title AS task_title", "t.reward_min", "t.reward_max")

	where := squirrel.And{squirrel.Eq{"ut.status": string(model.AttemptSubmitted)}}
	if search != "" {
		pattern := "%" + search + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"u.username": pattern},
			squirrel.ILike{"u.handle": pattern},
			squirrel.ILike{"t.title": pattern},
			squirrel.Expr("CAST(ut.user_id AS TEXT) LIKE ?", pattern),
		})
	}

	query, args, err := squirrel.
		Select(columns...).
		From("user_tasks ut").
		Join("users u ON u.telegram_id = ut.user_id").
		Join("tasks t ON t.id = ut.task_id").
		Where(where).
		OrderBy("ut.submitted_at", "ut.started_at").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []*pendingAttempt
	err = sqlx.SelectContext(ctx, r.conn(ctx), &rows, query, args...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to list pending attempts: %w", err)
	}

	pending := make([]*model.PendingAttempt, len(rows))
	for i, row := range rows {
		pending[i] = &model.PendingAttempt{
			Attempt:   *row.attempt.toModel(),
			Username:  row.Username,
			TaskTitle: row.TaskTitle,
			RewardMin: row.RewardMin,
			RewardMax: row.RewardMax,
		}
	}

	return pending, nil
}
