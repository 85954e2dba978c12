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

var premiumColumns = []string{
	"id",
	"request_number",
	"user_id",
	"payment_method",
	"amount",
	"currency",
	"status",
	"admin_notes",
	"created_at",
	"in_progress_at",
	"requisites_sent_at",
	"payment_confirmed_at",
	"completed_at",
	"cancelled_at",
}

type premiumRequest struct {
	ID                 uuid.UUID       `db:"id"`
	RequestNumber      string          `db:"request_number"`
	UserID             int64           `db:"user_id"`
	PaymentMethod      string          `db:"payment_method"`
	Amount             decimal.Decimal `db:"amount"`
	Currency           string          `db:"currency"`
	Status             string          `db:"status"`
	AdminNotes         *string         `db:"admin_notes"`
	CreatedAt          time.Time       `db:"created_at"`
	InProgressAt       *time.Time      `db:"in_progress_at"`
	RequisitesSentAt   *time.Time      `db:"requisites_sent_at"`
	PaymentConfirmedAt *time.Time      `db:"payment_confirmed_at"`
	CompletedAt        *time.Time      `db:"completed_at"`
	CancelledAt        *time.Time      `db:"cancelled_at"`
}

func (p *premiumRequest) toModel() *model.PremiumRequest {
	return &model.PremiumRequest{
		ID:                 p.ID,
		RequestNumber:      p.RequestNumber,
		UserID:             p.UserID,
		PaymentMethod:      model.PaymentMethod(p.PaymentMethod),
		Amount:             p.Amount,
		Currency:           model.Currency(p.Currency),
		Status:             model.PremiumStatus(p.Status),
		AdminNotes:         p.AdminNotes,
		CreatedAt:          p.CreatedAt,
		InProgressAt:       p.InProgressAt,
		RequisitesSentAt:   p.RequisitesSentAt,
		PaymentConfirmedAt: p.PaymentConfirmedAt,
		CompletedAt:        p.CompletedAt,
		CancelledAt:        p.CancelledAt,
	}
}

func (r *Repository) CreatePremiumRequest(ctx context.Context, req *model.PremiumRequest) error {
	query, args, err := squirrel.
		Insert("premium_requests").
		SetMap(map[string]interface{}{
			"id":             req.ID,
			"request_number": req.RequestNumber,
			"user_id":        req.UserID,
			"payment_method": string(req.PaymentMethod),
			"amount":         req.Amount,
			"currency":       string(req.Currency),
			"status":         string(req.Status),
			"admin_notes":    req.AdminNotes,
			"created_at":     req.CreatedAt,
			"completed_at":   req.CompletedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build premium request insert query: %w", err)
	}

	if _, err := r.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert premium request: %w", err)
	}

	return nil
}

// GetPremiumRequest reads a request; inside a transaction the row is locked.
func (r *Repository) GetPremiumRequest(ctx context.Context, id uuid.UUID) (*model.PremiumRequest, error) {
	builder := squirrel.
		Select(premiumColumns...).
		From("premium_requests").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)
	if inTx(ctx) {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var row premiumRequest
	err = sqlx.GetContext(ctx, r.conn(ctx), &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get premium request: %w", err)
	}

	return row.toModel(), nil
}

// UpdatePremiumRequest persists status, notes and timestamps, guarded on the
// row still being in status from.
func (r *Repository) UpdatePremiumRequest(ctx context.Context, req *model.PremiumRequest, from model.PremiumStatus) error {
	query, args, err := squirrel.
		Update("premium_requests").
		SetMap(map[string]interface{}{
			"status":               string(req.Status),
			"admin_notes":          req.AdminNotes,
			"in_progress_at":       req.InProgressAt,
			"requisites_sent_at":   req.RequisitesSentAt,
			"payment_confirmed_at": req.PaymentConfirmedAt,
			"completed_at":         req.CompletedAt,
			"cancelled_at":         req.CancelledAt,
		}).
		Where(squirrel.Eq{
			"id":     req.ID,
			"status": string(from),
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build premium request update query: %w", err)
	}

	result, err := r.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update premium request: %w", err)
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

func (r *Repository) ListPremiumRequests(ctx context.Context, filter model.PremiumFilter) ([]*model.PremiumRequest, error) {
	where := squirrel.Eq{}
	if filter.UserID != nil {
		where["user_id"] = *filter.UserID
	}
	if filter.Status != nil {
		where["status"] = string(*filter.Status)
	}

	builder := squirrel.
		Select(premiumColumns...).
		From("premium_requests").
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar)
	if len(where) > 0 {
		builder = builder.Where(where)
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []*premiumRequest
	err = sqlx.SelectContext(ctx, r.conn(ctx), &rows, query, args...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to list premium requests: %w", err)
	}

	requests := make([]*model.PremiumRequest, len(rows))
	for i, row := range rows {
		requests[i] = row.toModel()
	}

	return requests, nil
}
