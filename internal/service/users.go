package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskbot/internal/model"
	"taskbot/internal/repository"
	"taskbot/pkg/logger"

	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type UserService struct {
	repo   RankStore
	config ConfigSource
	ranks  *RankService
	now    func() time.Time
}

func NewUserService(repo RankStore, config ConfigSource, ranks *RankService) *UserService {
	return &UserService{
		repo:   repo,
		config: config,
		ranks:  ranks,
		now:    time.Now,
	}
}

// RegisterUser creates the user with a stone rank and credits the referrer.
// An existing user is returned unchanged with created=false. An unknown
// referrer is dropped.
func (s *UserService) RegisterUser(ctx context.Context, user *model.User) (*model.User, bool, error) {
	if user.ReferrerID != nil && *user.ReferrerID == user.TelegramID {
		user.ReferrerID = nil
	}
	if user.RegistrationDate.IsZero() {
		user.RegistrationDate = s.now().UTC()
	}

	err := s.repo.CreateUser(ctx, user)
	if errors.Is(err, repository.ErrNotFound) && user.ReferrerID != nil {
		logger.Logger().Info("unknown referrer, registering without it",
			zap.Int64("user_id", user.TelegramID),
			zap.Int64("referrer_id", *user.ReferrerID),
		)
		user.ReferrerID = nil
		err = s.repo.CreateUser(ctx, user)
	}
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			existing, err := s.GetUserByTelegramID(ctx, user.TelegramID)
			return existing, false, err
		}
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}

	cfg, err := s.config.Config(ctx)
	if err != nil {
		return nil, false, err
	}
	if _, err := s.repo.EnsureUserRank(ctx, user.TelegramID, cfg.Rank.StoneBonus); err != nil {
		return nil, false, fmt.Errorf("failed to create user rank: %w", err)
	}

	if user.ReferrerID != nil {
		if _, _, err := s.ranks.Recheck(ctx, *user.ReferrerID); err != nil {
			logger.Logger().Warn("failed to re-evaluate referrer rank",
				zap.Int64("referrer_id", *user.ReferrerID),
				zap.Error(err),
			)
		}
	}

	return user, true, nil
}

func (s *UserService) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.repo.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by telegram ID: %w", err)
	}
	return user, nil
}

// BalanceHistory returns the newest ledger entries first.
func (s *UserService) BalanceHistory(ctx context.Context, telegramID int64, limit int) ([]*model.BalanceLog, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	logs, err := s.repo.ListBalanceLogs(ctx, telegramID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list balance logs: %w", err)
	}
	return logs, nil
}
