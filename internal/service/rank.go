package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskbot/internal/metrics"
	"taskbot/internal/model"
	"taskbot/internal/repository"
	"taskbot/pkg/logger"

	"go.uber.org/zap"
)

const (
	defaultOracleTimeout = 5 * time.Second
	notifyTimeout        = 5 * time.Second
)

// RankService is the rank progression engine. Every mutation runs in a
// transaction holding the user's row lock.
type RankService struct {
	store    RankStore
	config   ConfigSource
	oracle   Oracle
	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time

	oracleTimeout time.Duration
}

func NewRankService(store RankStore, config ConfigSource, oracle Oracle, notifier Notifier, m *metrics.Metrics) *RankService {
	return &RankService{
		store:    store,
		config:   config,
		oracle:   oracle,
		notifier: notifier,
		metrics:  m,
		now:      time.Now,

		oracleTimeout: defaultOracleTimeout,
	}
}

// evaluateRank applies platinum expiry and threshold promotions to rank in
// place. It reports whether anything changed. Tiers below platinum never
// demote.
func evaluateRank(rank *model.UserRank, user *model.User, settings model.RankSettings, now time.Time) (model.Promotion, bool) {
	promotion := model.Promotion{From: rank.CurrentRank}
	changed := false

	if rank.TasksCompleted != user.TasksCompleted {
		rank.TasksCompleted = user.TasksCompleted
		changed = true
	}
	if rank.ReferralsCount < user.Referrals {
		rank.ReferralsCount = user.Referrals
		changed = true
	}

	if rank.PlatinumExpired(now) {
		rank.CurrentRank = model.RankGold
		rank.BonusPercentage = settings.GoldBonus
		rank.PlatinumActive = false
		promotion.Demoted = true
		changed = true
	}

	promote := func(to model.Rank) {
		rank.CurrentRank = to
		rank.BonusPercentage = settings.BonusFor(to)
		promotion.Promoted = true
		changed = true
	}

	if rank.CurrentRank == model.RankStone && rank.ChannelsSubscribed {
		promote(model.RankBronze)
	}
	if rank.CurrentRank == model.RankBronze && meetsRequirements(rank, settings, model.RankSilver) {
		promote(model.RankSilver)
	}
	if rank.CurrentRank == model.RankSilver && meetsRequirements(rank, settings, model.RankGold) {
		promote(model.RankGold)
	}

	promotion.To = rank.CurrentRank
	if changed {
		rank.UpdatedAt = now
	}

	return promotion, changed
}

func meetsRequirements(rank *model.UserRank, settings model.RankSettings, target model.Rank) bool {
	tasks, referrals, ok := settings.Requirements(target)
	if !ok {
		return false
	}

	return rank.TasksCompleted >= tasks && rank.ReferralsCount >= referrals
}

func mergePromotions(first, second model.Promotion) model.Promotion {
	return model.Promotion{
		Promoted: first.Promoted || second.Promoted,
		Demoted:  first.Demoted || second.Demoted,
		From:     first.From,
		To:       second.To,
	}
}

// lockRank locks the user row and returns it with the lazily created rank.
func lockRank(ctx context.Context, store RankStore, userID int64, settings model.RankSettings) (*model.User, *model.UserRank, error) {
	user, err := store.LockUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}

	rank, err := store.EnsureUserRank(ctx, userID, settings.StoneBonus)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}

	return user, rank, nil
}

// mutate runs fn against the locked user and rank, re-evaluates and persists
// the rank, and announces promotions once the transaction has committed.
func (s *RankService) mutate(
	ctx context.Context,
	userID int64,
	fn func(rank *model.UserRank),
) (*model.UserRank, model.Promotion, error) {
	cfg, err := s.config.Config(ctx)
	if err != nil {
		return nil, model.Promotion{}, err
	}

	var (
		rank      *model.UserRank
		promotion model.Promotion
	)
	err = s.store.Transaction(ctx, func(ctx context.Context) error {
		user, locked, err := lockRank(ctx, s.store, userID, cfg.Rank)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		subscribed := locked.ChannelsSubscribed
		if fn != nil {
			fn(locked)
		}

		var changed bool
		promotion, changed = evaluateRank(locked, user, cfg.Rank, now)
		rank = locked

		if !changed && subscribed == locked.ChannelsSubscribed {
			return nil
		}
		locked.UpdatedAt = now

		return s.store.SaveUserRank(ctx, locked)
	})
	if err != nil {
		return nil, model.Promotion{}, err
	}

	s.announce(ctx, userID, promotion)

	return rank, promotion, nil
}

// Recheck re-evaluates the user's rank, demoting an expired platinum first.
func (s *RankService) Recheck(ctx context.Context, userID int64) (*model.UserRank, model.Promotion, error) {
	return s.mutate(ctx, userID, nil)
}

// GetRank returns the user's rank after re-evaluation, so an expired platinum
// is never reported as active.
func (s *RankService) GetRank(ctx context.Context, userID int64) (*model.UserRank, error) {
	rank, _, err := s.Recheck(ctx, userID)
	return rank, err
}

func (s *RankService) SetChannelsSubscribed(ctx context.Context, userID int64, subscribed bool) (*model.UserRank, model.Promotion, error) {
	return s.mutate(ctx, userID, func(rank *model.UserRank) {
		rank.ChannelsSubscribed = subscribed
	})
}

// VerifyChannels asks the oracle about every required channel and stores the
// result. A failed check counts as not subscribed.
func (s *RankService) VerifyChannels(ctx context.Context, userID int64) (bool, *model.UserRank, model.Promotion, error) {
	cfg, err := s.config.Config(ctx)
	if err != nil {
		return false, nil, model.Promotion{}, err
	}

	subscribed := true
	for _, channel := range cfg.RequiredChannels {
		if !s.checkMember(ctx, userID, channel) {
			subscribed = false
			break
		}
	}

	rank, promotion, err := s.SetChannelsSubscribed(ctx, userID, subscribed)
	if err != nil {
		return false, nil, model.Promotion{}, err
	}

	return subscribed, rank, promotion, nil
}

// checkMember asks the oracle with a bounded wait. Errors and timeouts count
// as not a member.
func (s *RankService) checkMember(ctx context.Context, userID int64, channelID string) bool {
	if s.oracle == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.oracleTimeout)
	defer cancel()

	member, err := s.oracle.IsMember(ctx, userID, channelID)
	if err != nil {
		logger.Logger().Warn("channel membership check failed",
			zap.Int64("user_id", userID),
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
		s.metrics.OracleCheck("error")
		return false
	}

	if member {
		s.metrics.OracleCheck("member")
	} else {
		s.metrics.OracleCheck("not_member")
	}

	return member
}

func (s *RankService) Progress(ctx context.Context, userID int64) (*model.RankProgress, error) {
	rank, err := s.GetRank(ctx, userID)
	if err != nil {
		return nil, err
	}

	cfg, err := s.config.Config(ctx)
	if err != nil {
		return nil, err
	}

	return progressFor(rank, cfg.Rank), nil
}

func progressFor(rank *model.UserRank, settings model.RankSettings) *model.RankProgress {
	progress := &model.RankProgress{
		Rank:               rank.CurrentRank,
		TasksCompleted:     rank.TasksCompleted,
		ReferralsCount:     rank.ReferralsCount,
		ChannelsSubscribed: rank.ChannelsSubscribed,
		PlatinumExpiresAt:  rank.PlatinumExpiresAt,
		BonusPercentage:    rank.BonusPercentage,
	}

	next, ok := rank.CurrentRank.Next()
	if !ok {
		return progress
	}
	progress.NextRank = &next

	switch next {
	case model.RankBronze:
		if rank.ChannelsSubscribed {
			progress.Percent = 100
		}
	case model.RankSilver, model.RankGold:
		tasks, referrals, _ := settings.Requirements(next)
		progress.TasksRequired = tasks
		progress.ReferralsRequired = referrals
		progress.Percent = (percentOf(rank.TasksCompleted, tasks) + percentOf(rank.ReferralsCount, referrals)) / 2
	case model.RankPlatinum:
		progress.RequiresPurchase = true
	}

	return progress
}

func percentOf(value, required int) int {
	if required <= 0 || value >= required {
		return 100
	}
	if value <= 0 {
		return 0
	}

	return value * 100 / required
}

// activatePlatinum must run inside a transaction. An active subscription is
// extended from its current expiry.
func activatePlatinum(
	ctx context.Context,
	store RankStore,
	userID int64,
	settings model.RankSettings,
	now time.Time,
) (*model.UserRank, error) {
	user, rank, err := lockRank(ctx, store, userID, settings)
	if err != nil {
		return nil, err
	}

	evaluateRank(rank, user, settings, now)

	start := now
	if rank.PlatinumActive && rank.PlatinumExpiresAt != nil && rank.PlatinumExpiresAt.After(now) {
		start = *rank.PlatinumExpiresAt
	}
	expires := start.AddDate(0, 0, settings.PlatinumDurationDays)

	rank.CurrentRank = model.RankPlatinum
	rank.BonusPercentage = settings.PlatinumBonus
	rank.PlatinumActive = true
	rank.PlatinumExpiresAt = &expires
	rank.UpdatedAt = now

	if err := store.SaveUserRank(ctx, rank); err != nil {
		return nil, fmt.Errorf("failed to save platinum rank: %w", err)
	}

	return rank, nil
}

// ActivatePlatinum grants or extends platinum for the configured duration.
func (s *RankService) ActivatePlatinum(ctx context.Context, userID int64) (*model.UserRank, error) {
	cfg, err := s.config.Config(ctx)
	if err != nil {
		return nil, err
	}

	var rank *model.UserRank
	err = s.store.Transaction(ctx, func(ctx context.Context) error {
		var err error
		rank, err = activatePlatinum(ctx, s.store, userID, cfg.Rank, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.announcePlatinum(ctx, rank)

	return rank, nil
}

func (s *RankService) announce(ctx context.Context, userID int64, promotion model.Promotion) {
	if promotion.Demoted {
		s.metrics.PlatinumExpired()
		dispatch(ctx, s.notifier, model.Event{
			Type:    model.EventPlatinumExpired,
			UserID:  userID,
			Payload: map[string]any{"rank": string(model.RankGold)},
		})
	}

	if promotion.Promoted {
		s.metrics.RankPromoted(string(promotion.To))
		dispatch(ctx, s.notifier, model.Event{
			Type:    model.EventRankPromoted,
			UserID:  userID,
			Payload: map[string]any{"rank": string(promotion.To), "from": string(promotion.From)},
		})
	}
}

func (s *RankService) announcePlatinum(ctx context.Context, rank *model.UserRank) {
	payload := map[string]any{"rank": string(rank.CurrentRank)}
	if rank.PlatinumExpiresAt != nil {
		payload["expires_at"] = rank.PlatinumExpiresAt.Format(time.DateOnly)
	}

	dispatch(ctx, s.notifier, model.Event{
		Type:    model.EventPlatinumActivated,
		UserID:  rank.UserID,
		Payload: payload,
	})
}

// dispatch delivers an event after the state change has committed. Delivery
// is bounded by notifyTimeout and survives the caller's cancellation; failures
// are logged and never returned.
func dispatch(ctx context.Context, notifier Notifier, event model.Event) {
	if notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := notifier.Notify(ctx, event); err != nil {
		logger.Logger().Warn("failed to deliver notification",
			zap.Int64("user_id", event.UserID),
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}
