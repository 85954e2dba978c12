package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"taskbot/internal/model"
	"taskbot/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// DefaultModerationThreshold routes tasks whose reward_max exceeds it to manual review.
	DefaultModerationThreshold = 50

	SettingModerationThreshold = "moderation_reward_threshold"
	SettingRequiredChannels    = "required_channels"

	defaultSettingsRefresh = time.Minute
)

// EngineConfig is an immutable snapshot of everything the engines read from
// settings. Callers must not mutate it.
type EngineConfig struct {
	Rank                model.RankSettings `json:"rank"`
	ModerationThreshold decimal.Decimal    `json:"moderation_threshold"`
	RequiredChannels    []string           `json:"required_channels"`
}

// NeedsModeration is decided on the configured bounds, before any reward is rolled.
func (c *EngineConfig) NeedsModeration(task *model.Task) bool {
	return task.RewardMax.GreaterThan(c.ModerationThreshold)
}

type SettingsCache interface {
	LoadSettings(ctx context.Context, dst any) (bool, error)
	StoreSettings(ctx context.Context, snapshot any, ttl time.Duration) error
	InvalidateSettings(ctx context.Context) error
}

// SettingsProvider serves EngineConfig snapshots from memory, refreshing them
// from redis (when configured) and then postgres every refresh interval.
type SettingsProvider struct {
	repo    SettingsRepository
	cache   SettingsCache
	refresh time.Duration
	now     func() time.Time

	mu      sync.Mutex
	current *EngineConfig
	expires time.Time
}

func NewSettingsProvider(repo SettingsRepository, cache SettingsCache, refresh time.Duration) *SettingsProvider {
	if refresh <= 0 {
		refresh = defaultSettingsRefresh
	}

	return &SettingsProvider{
		repo:    repo,
		cache:   cache,
		refresh: refresh,
		now:     time.Now,
	}
}

func (p *SettingsProvider) Config(ctx context.Context) (*EngineConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.current != nil && now.Before(p.expires) {
		return p.current, nil
	}

	cfg, err := p.load(ctx)
	if err != nil {
		if p.current != nil {
			logger.Logger().Warn("settings refresh failed, serving stale snapshot", zap.Error(err))
			return p.current, nil
		}
		return nil, err
	}

	p.current = cfg
	p.expires = now.Add(p.refresh)

	return cfg, nil
}

func (p *SettingsProvider) load(ctx context.Context) (*EngineConfig, error) {
	log := logger.Logger()

	if p.cache != nil {
		var cached EngineConfig
		found, err := p.cache.LoadSettings(ctx, &cached)
		if err != nil {
			log.Warn("failed to read settings from cache", zap.Error(err))
		} else if found {
			return &cached, nil
		}
	}

	rankSettings, err := p.repo.GetRankSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rank settings: %w", err)
	}

	values, err := p.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	cfg := buildEngineConfig(*rankSettings, values)

	if p.cache != nil {
		if err := p.cache.StoreSettings(ctx, cfg, p.refresh); err != nil {
			log.Warn("failed to store settings in cache", zap.Error(err))
		}
	}

	return cfg, nil
}

func buildEngineConfig(rankSettings model.RankSettings, values map[string]string) *EngineConfig {
	cfg := &EngineConfig{
		Rank:                rankSettings,
		ModerationThreshold: decimal.NewFromInt(DefaultModerationThreshold),
	}

	if raw, ok := values[SettingModerationThreshold]; ok {
		threshold, err := parseThreshold(raw)
		if err != nil {
			logger.Logger().Warn("ignoring invalid moderation threshold",
				zap.String("value", raw),
				zap.Error(err),
			)
		} else {
			cfg.ModerationThreshold = threshold
		}
	}

	cfg.RequiredChannels = splitChannels(values[SettingRequiredChannels])

	return cfg
}

func parseThreshold(raw string) (decimal.Decimal, error) {
	threshold, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if threshold.IsNegative() {
		return decimal.Zero, fmt.Errorf("threshold must not be negative")
	}

	return threshold, nil
}

func splitChannels(raw string) []string {
	var channels []string
	for _, channel := range strings.Split(raw, ",") {
		channel = strings.TrimSpace(channel)
		if channel != "" {
			channels = append(channels, channel)
		}
	}

	return channels
}

// Invalidate drops the in-memory and shared snapshots so the next Config call reloads.
func (p *SettingsProvider) Invalidate(ctx context.Context) {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()

	if p.cache != nil {
		if err := p.cache.InvalidateSettings(ctx); err != nil {
			logger.Logger().Warn("failed to invalidate cached settings", zap.Error(err))
		}
	}
}

func (p *SettingsProvider) RankSettings(ctx context.Context) (*model.RankSettings, error) {
	cfg, err := p.Config(ctx)
	if err != nil {
		return nil, err
	}

	rankSettings := cfg.Rank
	return &rankSettings, nil
}

func (p *SettingsProvider) UpdateRankSettings(ctx context.Context, s model.RankSettings) error {
	if err := validateRankSettings(s); err != nil {
		return err
	}

	if err := p.repo.UpdateRankSettings(ctx, s); err != nil {
		return err
	}

	p.Invalidate(ctx)
	return nil
}

func validateRankSettings(s model.RankSettings) error {
	if s.SilverRequiredTasks < 0 || s.SilverRequiredReferrals < 0 ||
		s.GoldRequiredTasks < 0 || s.GoldRequiredReferrals < 0 {
		return fmt.Errorf("%w: requirements must not be negative", ErrValidation)
	}

	for _, v := range []decimal.Decimal{
		s.StoneBonus, s.BronzeBonus, s.SilverBonus, s.GoldBonus, s.PlatinumBonus,
		s.PlatinumPriceUSD, s.PlatinumPriceRUB, s.PlatinumPriceUAH,
	} {
		if v.IsNegative() {
			return fmt.Errorf("%w: bonuses and prices must not be negative", ErrValidation)
		}
	}

	if s.PlatinumDurationDays < 1 {
		return fmt.Errorf("%w: platinum duration must be at least one day", ErrValidation)
	}

	return nil
}

func (p *SettingsProvider) Settings(ctx context.Context) (map[string]string, error) {
	return p.repo.GetSettings(ctx)
}

func (p *SettingsProvider) SetSetting(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrValidation)
	}

	if key == SettingModerationThreshold {
		if _, err := parseThreshold(value); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrValidation, key, err)
		}
	}

	if err := p.repo.SetSetting(ctx, key, value); err != nil {
		return err
	}

	p.Invalidate(ctx)
	return nil
}
