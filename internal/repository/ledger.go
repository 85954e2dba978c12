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

type balanceLog struct {
	ID            int64           `db:"id"`
	UserID        int64           `db:"user_id"`
	Delta         decimal.Decimal `db:"delta"`
	BalanceBefore decimal.Decimal `db:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after"`
	Reason        string          `db:"reason"`
	Comment       string          `db:"comment"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (l *balanceLog) toModel() *model.BalanceLog {
	return &model.BalanceLog{
		ID:            l.ID,
		UserID:        l.UserID,
		Delta:         l.Delta,
		BalanceBefore: l.BalanceBefore,
		BalanceAfter:  l.BalanceAfter,
		Reason:        model.BalanceReason(l.Reason),
		Comment:       l.Comment,
		CreatedAt:     l.CreatedAt,
	}
}

// AppendBalanceChange locks the user row, writes the new balance and appends the
// matching ledger entry. It must run inside a transaction.
func (r *Repository) AppendBalanceChange(
	ctx context.Context,
	telegramID int64,
	delta decimal.Decimal,
	reason model.BalanceReason,
	comment string,
) (*model.BalanceLog, error) {
	user, err := r.LockUser(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	before := user.Balance
	after := before.Add(delta)
	if after.IsNegative() {
		return nil, ErrNegativeBalance
	}

	updateQuery, updateArgs, err := squirrel.
		Update("users").
		Set("balance", after).
		Where(squirrel.Eq{"telegram_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build balance update query: %w", err)
	}

	if _, err := r.conn(ctx).ExecContext(ctx, updateQuery, updateArgs...); err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	now := time.Now().UTC()
	insertQuery, insertArgs, err := squirrel.
		Insert("balance_logs").
		SetMap(map[string]interface{}{
			"user_id":        telegramID,
			"delta":          delta,
			"balance_before": before,
			"balance_after":  after,
			"reason":         string(reason),
			"comment":        comment,
			"created_at":     now,
		}).
		Suffix("RETURNING id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build balance log insert query: %w", err)
	}

	var id int64
	if err := sqlx.GetContext(ctx, r.conn(ctx), &id, insertQuery, insertArgs...); err != nil {
		return nil, fmt.Errorf("failed to insert balance log: %w", err)
	}

	return &model.BalanceLog{
		ID:            id,
		UserID:        telegramID,
		Delta:         delta,
		BalanceBefore: before,
		BalanceAfter:  after,
		Reason:        reason,
		Comment:       comment,
		CreatedAt:     now,
	}, nil
}

func (r *Repository) ListBalanceLogs(ctx context.Context, telegramID int64, limit int) ([]*model.BalanceLog, error) {
	query, args, err := squirrel.
		Select("id", "user_id", "delta", "balance_before", "balance_after", "reason", "comment", "created_at").
		From("balance_logs").
		Where(squirrel.Eq{"user_id": telegramID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []*balanceLog
	err = sqlx.SelectContext(ctx, r.conn(ctx), &rows, query, args...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to list balance logs: %w", err)
	}

	logs := make([]*model.BalanceLog, len(rows))
	for i, row := range rows {
		logs[i] = row.toModel()
	}

	return logs, nil
}
