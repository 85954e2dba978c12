package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRankOrder(t *testing.T) {
	assert.True(t, RankStone.Less(RankBronze))
	assert.True(t, RankGold.Less(RankPlatinum))
	assert.False(t, RankPlatinum.Less(RankSilver))
	assert.False(t, Rank("diamond").Valid())

	next, ok := RankSilver.Next()
	assert.True(t, ok)
	assert.Equal(t, RankGold, next)

	_, ok = RankPlatinum.Next()
	assert.False(t, ok)
}

func TestPlatinumExpired(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		rank UserRank
		want bool
	}{
		{name: "Active and past expiry", rank: UserRank{PlatinumActive: true, PlatinumExpiresAt: &past}, want: true},
		{name: "Active until later", rank: UserRank{PlatinumActive: true, PlatinumExpiresAt: &future}},
		{name: "Expires exactly now", rank: UserRank{PlatinumActive: true, PlatinumExpiresAt: &now}},
		{name: "Already demoted", rank: UserRank{PlatinumActive: false, PlatinumExpiresAt: &past}},
		{name: "No expiry", rank: UserRank{PlatinumActive: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rank.PlatinumExpired(now))
		})
	}
}

func TestRankSettingsLookups(t *testing.T) {
	s := DefaultRankSettings()

	assert.True(t, s.BonusFor(RankStone).IsZero())
	assert.Equal(t, "15", s.BonusFor(RankGold).String())

	price, ok := s.PriceFor(CurrencyRUB)
	assert.True(t, ok)
	assert.Equal(t, "900", price.String())

	_, ok = s.PriceFor(Currency("EUR"))
	assert.False(t, ok)

	tasks, referrals, ok := s.Requirements(RankGold)
	assert.True(t, ok)
	assert.Equal(t, 50, tasks)
	assert.Equal(t, 5, referrals)

	_, _, ok = s.Requirements(RankBronze)
	assert.False(t, ok)
}

func TestAttemptTransitions(t *testing.T) {
	tests := []struct {
		from AttemptStatus
		to   AttemptStatus
		want bool
	}{
		{AttemptInProgress, AttemptSubmitted, true},
		{AttemptInProgress, AttemptCompleted, true},
		{AttemptInProgress, AttemptRejected, false},
		{AttemptSubmitted, AttemptCompleted, true},
		{AttemptSubmitted, AttemptRejected, true},
		{AttemptSubmitted, AttemptInProgress, false},
		{AttemptCompleted, AttemptRejected, false},
		{AttemptRejected, AttemptCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.True(t, AttemptSubmitted.Active())
	assert.False(t, AttemptCompleted.Active())
}

func TestPremiumTransitions(t *testing.T) {
	open := []PremiumStatus{PremiumNew, PremiumInProgress, PremiumRequisitesSent, PremiumPaymentConfirmed}
	for _, s := range open {
		assert.True(t, s.CanTransitionTo(PremiumCancelled), "%s -> cancelled", s)
		assert.False(t, s.Terminal())
	}

	assert.True(t, PremiumPaymentConfirmed.CanTransitionTo(PremiumCompleted))
	for _, s := range []PremiumStatus{PremiumNew, PremiumInProgress, PremiumRequisitesSent} {
		assert.False(t, s.CanTransitionTo(PremiumCompleted), "%s -> completed skips payment confirmation", s)
	}

	for _, s := range []PremiumStatus{PremiumCompleted, PremiumCancelled} {
		assert.True(t, s.Terminal())
		for _, next := range append(open, PremiumCompleted, PremiumCancelled) {
			assert.False(t, s.CanTransitionTo(next), "%s -> %s", s, next)
		}
	}

	assert.False(t, PremiumPaymentConfirmed.CanTransitionTo(PremiumInProgress))
	assert.False(t, PremiumStatus("paid").Valid())
}

func TestPaymentMethodCurrency(t *testing.T) {
	c, ok := PaymentUAHRequisites.Currency()
	assert.True(t, ok)
	assert.Equal(t, CurrencyUAH, c)
	assert.True(t, PaymentUSDBalance.IsBalance())
	assert.False(t, PaymentRUBRequisites.IsBalance())

	_, ok = PaymentMethod("card").Currency()
	assert.False(t, ok)
}
