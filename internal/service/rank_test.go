package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"taskbot/internal/model"
	"taskbot/internal/repository"
	"taskbot/internal/service/mocks"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRankService(repo *mocks.MockRepository, cfg *EngineConfig, oracle Oracle, notifier Notifier) *RankService {
	s := NewRankService(repo, staticConfig{cfg: cfg}, oracle, notifier, nil)
	s.now = fixedNow
	return s
}

func TestEvaluateRank(t *testing.T) {
	settings := model.DefaultRankSettings()

	tests := []struct {
		name          string
		rank          model.UserRank
		user          model.User
		wantRank      model.Rank
		wantBonus     string
		wantPromoted  bool
		wantDemoted   bool
		wantChanged   bool
		wantPlatinum  bool
		wantTasksSync int
	}{
		{
			name:      "stone without subscription stays stone",
			rank:      model.UserRank{CurrentRank: model.RankStone, TasksCompleted: 100, ReferralsCount: 10},
			user:      model.User{TasksCompleted: 100, Referrals: 10},
			wantRank:  model.RankStone,
			wantBonus: "0",
		},
		{
			name:         "subscription promotes stone to bronze",
			rank:         model.UserRank{CurrentRank: model.RankStone, ChannelsSubscribed: true},
			user:         model.User{},
			wantRank:     model.RankBronze,
			wantBonus:    "5",
			wantPromoted: true,
			wantChanged:  true,
		},
		{
			name:         "qualified subscriber cascades to silver",
			rank:         model.UserRank{CurrentRank: model.RankStone, ChannelsSubscribed: true, TasksCompleted: 10, ReferralsCount: 1},
			user:         model.User{TasksCompleted: 10, Referrals: 1},
			wantRank:     model.RankSilver,
			wantBonus:    "10",
			wantPromoted: true,
			wantChanged:  true,
		},
		{
			name:         "cascade continues to gold",
			rank:         model.UserRank{CurrentRank: model.RankStone, ChannelsSubscribed: true, TasksCompleted: 50, ReferralsCount: 5},
			user:         model.User{TasksCompleted: 50, Referrals: 5},
			wantRank:     model.RankGold,
			wantBonus:    "15",
			wantPromoted: true,
			wantChanged:  true,
		},
		{
			name:      "bronze missing referrals stays bronze",
			rank:      model.UserRank{CurrentRank: model.RankBronze, ChannelsSubscribed: true, TasksCompleted: 10, BonusPercentage: dec("5")},
			user:      model.User{TasksCompleted: 10},
			wantRank:  model.RankBronze,
			wantBonus: "5",
		},
		{
			name:          "stale task counter is resynced before promotion",
			rank:          model.UserRank{CurrentRank: model.RankSilver, TasksCompleted: 5, ReferralsCount: 5, BonusPercentage: dec("10")},
			user:          model.User{TasksCompleted: 50, Referrals: 5},
			wantRank:      model.RankGold,
			wantBonus:     "15",
			wantPromoted:  true,
			wantChanged:   true,
			wantTasksSync: 50,
		},
		{
			name: "expired platinum is demoted to gold",
			rank: model.UserRank{
				CurrentRank:       model.RankPlatinum,
				BonusPercentage:   dec("25"),
				PlatinumActive:    true,
				PlatinumExpiresAt: timePtr(testNow.Add(-time.Minute)),
			},
			wantRank:    model.RankGold,
			wantBonus:   "15",
			wantDemoted: true,
			wantChanged: true,
		},
		{
			name: "active platinum is kept",
			rank: model.UserRank{
				CurrentRank:       model.RankPlatinum,
				BonusPercentage:   dec("25"),
				PlatinumActive:    true,
				PlatinumExpiresAt: timePtr(testNow.Add(time.Hour)),
			},
			wantRank:     model.RankPlatinum,
			wantBonus:    "25",
			wantPlatinum: true,
		},
		{
			name:      "gold never demotes on falling progress",
			rank:      model.UserRank{CurrentRank: model.RankGold, BonusPercentage: dec("15")},
			user:      model.User{},
			wantRank:  model.RankGold,
			wantBonus: "15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rank := tt.rank

			promotion, changed := evaluateRank(&rank, &tt.user, settings, testNow)

			assert.Equal(t, tt.wantRank, rank.CurrentRank)
			assert.True(t, rank.BonusPercentage.Equal(dec(tt.wantBonus)), "bonus %s", rank.BonusPercentage)
			assert.Equal(t, tt.wantPromoted, promotion.Promoted)
			assert.Equal(t, tt.wantDemoted, promotion.Demoted)
			assert.Equal(t, tt.rank.CurrentRank, promotion.From)
			assert.Equal(t, tt.wantRank, promotion.To)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantPlatinum, rank.PlatinumActive)
			if tt.wantTasksSync != 0 {
				assert.Equal(t, tt.wantTasksSync, rank.TasksCompleted)
			}
		})
	}
}

func TestEvaluateRank_Monotonic(t *testing.T) {
	settings := model.DefaultRankSettings()
	rng := rand.New(rand.NewPCG(7, 11))

	rank := &model.UserRank{CurrentRank: model.RankStone}
	user := &model.User{}

	for i := 0; i < 500; i++ {
		switch rng.IntN(3) {
		case 0:
			user.TasksCompleted += rng.IntN(3)
		case 1:
			user.Referrals++
		case 2:
			rank.ChannelsSubscribed = true
		}

		before := rank.CurrentRank
		evaluateRank(rank, user, settings, testNow)
		assert.False(t, rank.CurrentRank.Less(before), "rank went from %s to %s", before, rank.CurrentRank)
	}

	assert.Equal(t, model.RankGold, rank.CurrentRank)
}

func TestProgressFor(t *testing.T) {
	settings := model.DefaultRankSettings()

	tests := []struct {
		name             string
		rank             model.UserRank
		wantNext         *model.Rank
		wantPercent      int
		requiresPurchase bool
	}{
		{
			name:        "stone not subscribed",
			rank:        model.UserRank{CurrentRank: model.RankStone},
			wantNext:    rankPtr(model.RankBronze),
			wantPercent: 0,
		},
		{
			name:        "stone subscribed",
			rank:        model.UserRank{CurrentRank: model.RankStone, ChannelsSubscribed: true},
			wantNext:    rankPtr(model.RankBronze),
			wantPercent: 100,
		},
		{
			name:        "bronze half way on tasks",
			rank:        model.UserRank{CurrentRank: model.RankBronze, TasksCompleted: 5},
			wantNext:    rankPtr(model.RankSilver),
			wantPercent: 25,
		},
		{
			name:        "progress is capped per component",
			rank:        model.UserRank{CurrentRank: model.RankBronze, TasksCompleted: 40, ReferralsCount: 0},
			wantNext:    rankPtr(model.RankSilver),
			wantPercent: 50,
		},
		{
			name:        "silver toward gold",
			rank:        model.UserRank{CurrentRank: model.RankSilver, TasksCompleted: 25, ReferralsCount: 5},
			wantNext:    rankPtr(model.RankGold),
			wantPercent: 75,
		},
		{
			name:             "gold requires purchase",
			rank:             model.UserRank{CurrentRank: model.RankGold},
			wantNext:         rankPtr(model.RankPlatinum),
			requiresPurchase: true,
		},
		{
			name: "platinum has no next tier",
			rank: model.UserRank{CurrentRank: model.RankPlatinum, PlatinumActive: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			progress := progressFor(&tt.rank, settings)

			assert.Equal(t, tt.wantNext, progress.NextRank)
			assert.Equal(t, tt.wantPercent, progress.Percent)
			assert.Equal(t, tt.requiresPurchase, progress.RequiresPurchase)
		})
	}
}

func rankPtr(r model.Rank) *model.Rank {
	return &r
}

func TestRankService_SetChannelsSubscribed(t *testing.T) {
	repo := &mocks.MockRepository{}
	notifier := &mocks.MockNotifier{}
	s := newTestRankService(repo, testConfig(), nil, notifier)

	user := &model.User{TelegramID: 1, TasksCompleted: 12, Referrals: 2}
	rank := &model.UserRank{UserID: 1, CurrentRank: model.RankStone, TasksCompleted: 12, ReferralsCount: 2, BonusPercentage: decimal.Zero}

	repo.On("LockUser", mock.Anything, int64(1)).Return(user, nil)
	repo.On("EnsureUserRank", mock.Anything, int64(1), decEq("0")).Return(rank, nil)
	repo.On("SaveUserRank", mock.Anything, mock.MatchedBy(func(r *model.UserRank) bool {
		return r.CurrentRank == model.RankSilver && r.ChannelsSubscribed && r.BonusPercentage.Equal(dec("10"))
	})).Return(nil).Once()
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(e model.Event) bool {
		return e.Type == model.EventRankPromoted && e.UserID == 1 && e.Payload["rank"] == "silver"
	})).Return(nil).Once()

	got, promotion, err := s.SetChannelsSubscribed(context.Background(), 1, true)
	require.NoError(t, err)
	assert.Equal(t, model.RankSilver, got.CurrentRank)
	assert.True(t, promotion.Promoted)
	assert.Equal(t, model.RankStone, promotion.From)
	assert.Equal(t, model.RankSilver, promotion.To)

	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestRankService_RecheckDemotesOnce(t *testing.T) {
	repo := &mocks.MockRepository{}
	notifier := &mocks.MockNotifier{}
	s := newTestRankService(repo, testConfig(), nil, notifier)

	user := &model.User{TelegramID: 2, TasksCompleted: 70, Referrals: 9}
	rank := &model.UserRank{
		UserID:             2,
		CurrentRank:        model.RankPlatinum,
		TasksCompleted:     70,
		ReferralsCount:     9,
		ChannelsSubscribed: true,
		BonusPercentage:    dec("25"),
		PlatinumActive:     true,
		PlatinumExpiresAt:  timePtr(testNow.Add(-24 * time.Hour)),
	}

	repo.On("LockUser", mock.Anything, int64(2)).Return(user, nil)
	repo.On("EnsureUserRank", mock.Anything, int64(2), mock.Anything).Return(rank, nil)
	repo.On("SaveUserRank", mock.Anything, mock.MatchedBy(func(r *model.UserRank) bool {
		return r.CurrentRank == model.RankGold && !r.PlatinumActive && r.BonusPercentage.Equal(dec("15"))
	})).Return(nil).Once()
	notifier.On("Notify", mock.Anything, eventOfType(model.EventPlatinumExpired)).Return(nil).Once()

	got, promotion, err := s.Recheck(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, promotion.Demoted)
	assert.False(t, promotion.Promoted)
	assert.Equal(t, model.RankGold, got.CurrentRank)

	_, promotion, err = s.Recheck(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, promotion.Demoted)

	repo.AssertNumberOfCalls(t, "SaveUserRank", 1)
	notifier.AssertExpectations(t)
}

func TestRankService_RecheckUserNotFound(t *testing.T) {
	repo := &mocks.MockRepository{}
	s := newTestRankService(repo, testConfig(), nil, nil)

	repo.On("LockUser", mock.Anything, int64(3)).Return(nil, repository.ErrNotFound)

	_, _, err := s.Recheck(context.Background(), 3)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRankService_VerifyChannels(t *testing.T) {
	tests := []struct {
		name           string
		channels       []string
		setupOracle    func(o *mocks.MockOracle)
		wantSubscribed bool
		wantRank       model.Rank
	}{
		{
			name:     "member of every channel",
			channels: []string{"@a", "@b"},
			setupOracle: func(o *mocks.MockOracle) {
				o.On("IsMember", mock.Anything, int64(4), "@a").Return(true, nil)
				o.On("IsMember", mock.Anything, int64(4), "@b").Return(true, nil)
			},
			wantSubscribed: true,
			wantRank:       model.RankBronze,
		},
		{
			name:     "missing one channel",
			channels: []string{"@a", "@b"},
			setupOracle: func(o *mocks.MockOracle) {
				o.On("IsMember", mock.Anything, int64(4), "@a").Return(true, nil)
				o.On("IsMember", mock.Anything, int64(4), "@b").Return(false, nil)
			},
			wantRank: model.RankStone,
		},
		{
			name:     "oracle failure counts as not subscribed",
			channels: []string{"@a"},
			setupOracle: func(o *mocks.MockOracle) {
				o.On("IsMember", mock.Anything, int64(4), "@a").Return(false, errors.New("timeout"))
			},
			wantRank: model.RankStone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockRepository{}
			oracle := &mocks.MockOracle{}
			tt.setupOracle(oracle)

			cfg := testConfig()
			cfg.RequiredChannels = tt.channels
			s := newTestRankService(repo, cfg, oracle, nil)

			rank := &model.UserRank{UserID: 4, CurrentRank: model.RankStone, BonusPercentage: decimal.Zero}
			repo.On("LockUser", mock.Anything, int64(4)).Return(&model.User{TelegramID: 4}, nil)
			repo.On("EnsureUserRank", mock.Anything, int64(4), mock.Anything).Return(rank, nil)
			repo.On("SaveUserRank", mock.Anything, mock.Anything).Return(nil).Maybe()

			subscribed, got, _, err := s.VerifyChannels(context.Background(), 4)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubscribed, subscribed)
			assert.Equal(t, tt.wantRank, got.CurrentRank)
			oracle.AssertExpectations(t)
		})
	}
}

func TestRankService_ActivatePlatinum(t *testing.T) {
	tests := []struct {
		name        string
		rank        model.UserRank
		wantExpires time.Time
	}{
		{
			name:        "gold user starts from now",
			rank:        model.UserRank{UserID: 5, CurrentRank: model.RankGold, BonusPercentage: dec("15")},
			wantExpires: testNow.AddDate(0, 0, 30),
		},
		{
			name: "active platinum is extended from its expiry",
			rank: model.UserRank{
				UserID:            5,
				CurrentRank:       model.RankPlatinum,
				BonusPercentage:   dec("25"),
				PlatinumActive:    true,
				PlatinumExpiresAt: timePtr(testNow.AddDate(0, 0, 10)),
			},
			wantExpires: testNow.AddDate(0, 0, 40),
		},
		{
			name: "expired platinum restarts from now",
			rank: model.UserRank{
				UserID:            5,
				CurrentRank:       model.RankPlatinum,
				BonusPercentage:   dec("25"),
				PlatinumActive:    true,
				PlatinumExpiresAt: timePtr(testNow.AddDate(0, 0, -3)),
			},
			wantExpires: testNow.AddDate(0, 0, 30),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockRepository{}
			notifier := &mocks.MockNotifier{}
			s := newTestRankService(repo, testConfig(), nil, notifier)

			rank := tt.rank
			repo.On("LockUser", mock.Anything, int64(5)).Return(&model.User{TelegramID: 5}, nil)
			repo.On("EnsureUserRank", mock.Anything, int64(5), mock.Anything).Return(&rank, nil)
			repo.On("SaveUserRank", mock.Anything, mock.Anything).Return(nil)
			notifier.On("Notify", mock.Anything, eventOfType(model.EventPlatinumActivated)).Return(nil).Once()

			got, err := s.ActivatePlatinum(context.Background(), 5)
			require.NoError(t, err)
			assert.Equal(t, model.RankPlatinum, got.CurrentRank)
			assert.True(t, got.PlatinumActive)
			assert.True(t, got.BonusPercentage.Equal(dec("25")))
			require.NotNil(t, got.PlatinumExpiresAt)
			assert.Equal(t, tt.wantExpires, *got.PlatinumExpiresAt)
			notifier.AssertExpectations(t)
		})
	}
}
