package service

import (
	"context"
	"time"

	"taskbot/internal/metrics"
	"taskbot/pkg/logger"

	"go.uber.org/zap"
)

const (
	sweepLockName = "platinum-expiry-sweep"

	defaultSweepInterval = 24 * time.Hour
	defaultSweepLockTTL  = 10 * time.Minute
)

type ExpiredLister interface {
	ListExpiredPlatinum(ctx context.Context, now time.Time) ([]int64, error)
}

// ExpirySweeper periodically demotes users whose platinum has expired. Only
// one replica sweeps at a time when a Locker is set.
type ExpirySweeper struct {
	repo     ExpiredLister
	ranks    *RankService
	locker   Locker
	metrics  *metrics.Metrics
	interval time.Duration
	lockTTL  time.Duration
	now      func() time.Time
}

func NewExpirySweeper(
	repo ExpiredLister,
	ranks *RankService,
	locker Locker,
	m *metrics.Metrics,
	interval, lockTTL time.Duration,
) *ExpirySweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if lockTTL <= 0 {
		lockTTL = defaultSweepLockTTL
	}

	return &ExpirySweeper{
		repo:     repo,
		ranks:    ranks,
		locker:   locker,
		metrics:  m,
		interval: interval,
		lockTTL:  lockTTL,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *ExpirySweeper) Run(ctx context.Context) {
	log := logger.Logger()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil {
			log.Error("platinum expiry sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			log.Info("platinum expiry sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep demotes every expired platinum user and returns how many were
// demoted. Running it twice demotes nobody the second time.
func (s *ExpirySweeper) Sweep(ctx context.Context) (int, error) {
	log := logger.Logger()

	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, sweepLockName, s.lockTTL)
		if err != nil {
			s.metrics.SweepRun("error")
			return 0, err
		}
		if !ok {
			log.Debug("platinum expiry sweep is running elsewhere")
			s.metrics.SweepRun("skipped")
			return 0, nil
		}
		defer func() {
			if err := s.locker.Unlock(ctx, sweepLockName); err != nil {
				log.Warn("failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	userIDs, err := s.repo.ListExpiredPlatinum(ctx, s.now().UTC())
	if err != nil {
		s.metrics.SweepRun("error")
		return 0, err
	}

	demoted := 0
	for _, userID := range userIDs {
		_, promotion, err := s.ranks.Recheck(ctx, userID)
		if err != nil {
			log.Error("failed to demote expired platinum",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			continue
		}
		if promotion.Demoted {
			demoted++
		}
	}

	log.Info("platinum expiry sweep finished",
		zap.Int("expired", len(userIDs)),
		zap.Int("demoted", demoted),
	)
	s.metrics.SweepRun("ok")

	return demoted, nil
}
