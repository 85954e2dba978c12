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
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var taskColumns = []string{
	"t.id",
	"t.title",
	"t.description",
	"t.link",
	"t.reward_min",
	"t.reward_max",
	"t.max_per_user",
	"t.task_type",
	"t.channel_id",
	"t.cooldown_hours",
	"t.active",
	"t.created_at",
}

type task struct {
	ID            uuid.UUID       `db:"id"`
	Title         string          `db:"title"`
	Description   string          `db:"description"`
	Link          string          `db:"link"`
	RewardMin     decimal.Decimal `db:"reward_min"`
	RewardMax     decimal.Decimal `db:"reward_max"`
	MaxPerUser    int             `db:"max_per_user"`
	TaskType      string          `db:"task_type"`
	ChannelID     string          `db:"channel_id"`
	CooldownHours int             `db:"cooldown_hours"`
	Active        bool            `db:"active"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (t *task) toModel() *model.Task {
	return &model.Task{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Link:          t.Link,
		RewardMin:     t.RewardMin,
		RewardMax:     t.RewardMax,
		MaxPerUser:    t.MaxPerUser,
		TaskType:      model.TaskType(t.TaskType),
		ChannelID:     t.ChannelID,
		CooldownHours: t.CooldownHours,
		Active:        t.Active,
		CreatedAt:     t.CreatedAt,
	}
}

type userTask struct {
	task
	CompletedCount  int            `db:"completed_count"`
	LastCompletedAt *time.Time     `db:"last_completed_at"`
	ActiveStatuses  pq.StringArray `db:"active_statuses"`
}

func (r *Repository) CreateTask(ctx context.Context, t *model.Task) error {
	query, args, err := squirrel.
		Insert("tasks").
		SetMap(map[string]interface{}{
			"id":             t.ID,
			"title":          t.Title,
			"description":    t.Description,
			"link":           t.Link,
			"reward_min":     t.RewardMin,
			"reward_max":     t.RewardMax,
			"max_per_user":   t.MaxPerUser,
			"task_type":      string(t.TaskType),
			"channel_id":     t.ChannelID,
			"cooldown_hours": t.CooldownHours,
			"active":         t.Active,
			"created_at":     t.CreatedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build task insert query: %w", err)
	}

	if _, err := r.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return nil
}

func (r *Repository) UpdateTask(ctx context.Context, t *model.Task) error {
	query, args, err := squirrel.
		Update("tasks").
		SetMap(map[string]interface{}{
			"title":          t.Title,
			"description":    t.Description,
			"link":           t.Link,
			"reward_min":     t.RewardMin,
			"reward_max":     t.RewardMax,
			"max_per_user":   t.MaxPerUser,
			"task_type":      string(t.TaskType),
			"channel_id":     t.ChannelID,
			"cooldown_hours": t.CooldownHours,
			"active":         t.Active,
		}).
		Where(squirrel.Eq{"id": t.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build task update query: %w", err)
	}

	result, err := r.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
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

func (r *Repository) getTask(ctx context.Context, id uuid.UUID, lock bool) (*model.Task, error) {
	builder := squirrel.
		Select(taskColumns...).
		From("tasks t").
		Where(squirrel.Eq{"t.id": id}).
		PlaceholderFormat(squirrel.Dollar)
	if lock {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var t task
	err = sqlx.GetContext(ctx, r.conn(ctx), &t, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return t.toModel(), nil
}

func (r *Repository) GetTask(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	return r.getTask(ctx, id, false)
}

// LockTask reads the task with FOR UPDATE inside the current transaction.
func (r *Repository) LockTask(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	return r.getTask(ctx, id, inTx(ctx))
}

// CountOpenAttempts counts in_progress and submitted attempts at the task.
func (r *Repository) CountOpenAttempts(ctx context.Context, taskID uuid.UUID) (int, error) {
	query, args, err := squirrel.
		Select("COUNT(*)").
		From("user_tasks").
		Where(squirrel.Eq{
			"task_id": taskID,
			"status":  []string{string(model.AttemptInProgress), string(model.AttemptSubmitted)},
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	var count int
	if err := sqlx.GetContext(ctx, r.conn(ctx), &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count open attempts: %w", err)
	}

	return count, nil
}

func (r *Repository) ListTasks(ctx context.Context, activeOnly bool) ([]*model.Task, error) {
	builder := squirrel.
		Select(taskColumns...).
		From("tasks t").
		OrderBy("t.created_at").
		PlaceholderFormat(squirrel.Dollar)
	if activeOnly {
		builder = builder.Where(squirrel.Eq{"t.active": true})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []*task
	err = sqlx.SelectContext(ctx, r.conn(ctx), &rows, query, args...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]*model.Task, len(rows))
	for i, t := range rows {
		tasks[i] = t.toModel()
	}

	return tasks, nil
}

// ListUserTasks returns every active task together with the user's completed
// count and in-flight attempt status, if any.
func (r *Repository) ListUserTasks(ctx context.Context, telegramID int64) ([]*model.UserTask, error) {
	columns := append([]string{}, taskColumns...)
	columns = append(columns,
		"COUNT(ut.id) FILTER (WHERE ut.status = 'completed') AS completed_count",
		"MAX(ut.completed_at) AS last_completed_at",
		"array_agg(ut.status) FILTER (WHERE ut.status IN ('in_progress', 'submitted')) AS active_statuses",
	)

	query, args, err := squirrel.
		Select(columns...).
		From("tasks t").
		LeftJoin("user_tasks ut ON ut.task_id = t.id AND ut.user_id = ?", telegramID).
		Where(squirrel.Eq{"t.active": true}).
		GroupBy("t.id").
		OrderBy("t.created_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []*userTask
	err = sqlx.SelectContext(ctx, r.conn(ctx), &rows, query, args...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to list user tasks: %w", err)
	}

	tasks := make([]*model.UserTask, len(rows))
	for i, row := range rows {
		ut := &model.UserTask{
			Task:            *row.task.toModel(),
			CompletedCount:  row.CompletedCount,
			LastCompletedAt: row.LastCompletedAt,
		}
		if len(row.ActiveStatuses) > 0 {
			status := model.AttemptStatus(row.ActiveStatuses[0])
			ut.ActiveStatus = &status
		}
		tasks[i] = ut
	}

	return tasks, nil
}
