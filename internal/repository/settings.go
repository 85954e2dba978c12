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

type rankSettings struct {
	SilverRequiredTasks     int             `db:"silver_required_tasks"`
	SilverRequiredReferrals int             `db:"silver_required_referrals"`
	GoldRequiredTasks       int             `db:"gold_required_tasks"`
	GoldRequiredReferrals   int             `db:"gold_required_referrals"`
	StoneBonus              decimal.Decimal `db:"stone_bonus"`
	BronzeBonus             decimal.Decimal `db:"bronze_bonus"`
	SilverBonus             decimal.Decimal `db:"silver_bonus"`
	GoldBonus               decimal.Decimal `db:"gold_bonus"`
	PlatinumBonus           decimal.Decimal `db:"platinum_bonus"`
	PlatinumPriceUSD        decimal.Decimal `db:"platinum_price_usd"`
	PlatinumPriceRUB        decimal.Decimal `db:"platinum_price_rub"`
	PlatinumPriceUAH        decimal.Decimal `db:"platinum_price_uah"`
	PlatinumDurationDays    int             `db:"platinum_duration_days"`
	UpdatedAt               time.Time       `db:"updated_at"`
}

func rankSettingsMap(s model.RankSettings) map[string]interface{} {
	return map[string]interface{}{
		"silver_required_tasks":     s.SilverRequiredTasks,
		"silver_required_referrals": s.SilverRequiredReferrals,
		"gold_required_tasks":       s.GoldRequiredTasks,
		"gold_required_referrals":   s.GoldRequiredReferrals,
		"stone_bonus":               s.StoneBonus,
		"bronze_bonus":              s.BronzeBonus,
		"silver_bonus":              s.SilverBonus,
		"gold_bonus":                s.GoldBonus,
		"platinum_bonus":            s.PlatinumBonus,
		"platinum_price_usd":        s.PlatinumPriceUSD,
		"platinum_price_rub":        s.PlatinumPriceRUB,
		"platinum_price_uah":        s.PlatinumPriceUAH,
		"platinum_duration_days":    s.PlatinumDurationDays,
		"updated_at":                time.Now().UTC(),
	}
}

// GetRankSettings returns the singleton settings row, inserting the defaults
// when the row does not exist yet.
func (r *Repository) GetRankSettings(ctx context.Context) (*model.RankSettings, error) {
	query, args, err := squirrel.
		Select(
			"silver_required_tasks",
			"silver_required_referrals",
			"gold_required_tasks",
			"gold_required_referrals",
			"stone_bonus",
			"bronze_bonus",
			"silver_bonus",
			"gold_bonus",
			"platinum_bonus",
			"platinum_price_usd",
			"platinum_price_rub",
			"platinum_price_uah",
			"platinum_duration_days",
			"updated_at",
		).
		From("rank_settings").
		Where(squirrel.Eq{"id": 1}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var row rankSettings
	err = sqlx.GetContext(ctx, r.conn(ctx), &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		defaults := model.DefaultRankSettings()
		if err := r.insertDefaultRankSettings(ctx, defaults); err != nil {
			return nil, err
		}
		return &defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rank settings: %w", err)
	}

	return &model.RankSettings{
		SilverRequiredTasks:     row.SilverRequiredTasks,
		SilverRequiredReferrals: row.SilverRequiredReferrals,
		GoldRequiredTasks:       row.GoldRequiredTasks,
		GoldRequiredReferrals:   row.GoldRequiredReferrals,
		StoneBonus:              row.StoneBonus,
		BronzeBonus:             row.BronzeBonus,
		SilverBonus:             row.SilverBonus,
		GoldBonus:               row.GoldBonus,
		PlatinumBonus:           row.PlatinumBonus,
		PlatinumPriceUSD:        row.PlatinumPriceUSD,
		PlatinumPriceRUB:        row.PlatinumPriceRUB,
		PlatinumPriceUAH:        row.PlatinumPriceUAH,
		PlatinumDurationDays:    row.PlatinumDurationDays,
		UpdatedAt:               row.UpdatedAt,
	}, nil
}

func (r *Repository) insertDefaultRankSettings(ctx context.Context, defaults model.RankSettings) error {
	values := rankSettingsMap(defaults)
	values["id"] = 1

	query, args, err := squirrel.
		Insert("rank_settings").
		SetMap(values).
		Suffix("ON CONFLICT (id) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build rank settings insert query: %w", err)
	}

	if _, err := r.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert default rank settings: %w", err)
	}

	return nil
}

func (r *Repository) UpdateRankSettings(ctx context.Context, s model.RankSettings) error {
	if _, err := r.GetRankSettings(ctx); err != nil {
		return err
	}

	query, args, err := squirrel.
		Update("rank_settings").
		SetMap(rankSettingsMap(s)).
		Where(squirrel.Eq{"id": 1}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build rank settings update query: %w", err)
	}

	if _, err := r.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update rank settings: %w", err)
	}

	return nil
}

// GetSettings returns the whole key/value settings table.
func (r *Repository) GetSettings(ctx context.Context) (map[string]string, error) {
	query, args, err := squirrel.
		Select("key", "value").
		From("settings").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	err = sqlx.SelectContext(ctx, r.conn(ctx), &rows, query, args...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	settings := make(map[string]string, len(rows))
	for _, row := range rows {
		settings[row.Key] = row.Value
	}

	return settings, nil
}

func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	query, args, err := squirrel.
		Insert("settings").
		Columns("key", "value", "updated_at").
		Values(key, value, time.Now().UTC()).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build setting upsert query: %w", err)
	}

	if _, err := r.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert setting: %w", err)
	}

	return nil
}
