package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Rank string

const (
	RankStone    Rank = "stone"
	RankBronze   Rank = "bronze"
	RankSilver   Rank = "silver"
	RankGold     Rank = "gold"
	RankPlatinum Rank = "platinum"
)

var rankOrder = []Rank{RankStone, RankBronze, RankSilver, RankGold, RankPlatinum}

func (r Rank) index() int {
	for i, rank := range rankOrder {
		if rank == r {
			return i
		}
	}
	return -1
}

func (r Rank) Valid() bool {
	return r.index() >= 0
}

func (r Rank) Less(other Rank) bool {
	return r.index() < other.index()
}

// Next returns the tier directly above r. Platinum has none.
func (r Rank) Next() (Rank, bool) {
	i := r.index()
	if i < 0 || i+1 >= len(rankOrder) {
		return "", false
	}
	return rankOrder[i+1], true
}

type UserRank struct {
	UserID             int64
	CurrentRank        Rank
	TasksCompleted     int
	ReferralsCount     int
	ChannelsSubscribed bool
	BonusPercentage    decimal.Decimal
	PlatinumActive     bool
	PlatinumExpiresAt  *time.Time
	UpdatedAt          time.Time
}

// PlatinumExpired reports whether an active platinum subscription has run out at now.
func (r *UserRank) PlatinumExpired(now time.Time) bool {
	return r.PlatinumActive && r.PlatinumExpiresAt != nil && now.After(*r.PlatinumExpiresAt)
}

type RankSettings struct {
	SilverRequiredTasks     int
	SilverRequiredReferrals int
	GoldRequiredTasks       int
	GoldRequiredReferrals   int

	StoneBonus    decimal.Decimal
	BronzeBonus   decimal.Decimal
	SilverBonus   decimal.Decimal
	GoldBonus     decimal.Decimal
	PlatinumBonus decimal.Decimal

	PlatinumPriceUSD     decimal.Decimal
	PlatinumPriceRUB     decimal.Decimal
	PlatinumPriceUAH     decimal.Decimal
	PlatinumDurationDays int

	UpdatedAt time.Time
}

func DefaultRankSettings() RankSettings {
	return RankSettings{
		SilverRequiredTasks:     10,
		SilverRequiredReferrals: 1,
		GoldRequiredTasks:       50,
		GoldRequiredReferrals:   5,
		StoneBonus:              decimal.Zero,
		BronzeBonus:             decimal.NewFromInt(5),
		SilverBonus:             decimal.NewFromInt(10),
		GoldBonus:               decimal.NewFromInt(15),
		PlatinumBonus:           decimal.NewFromInt(25),
		PlatinumPriceUSD:        decimal.NewFromInt(10),
		PlatinumPriceRUB:        decimal.NewFromInt(900),
		PlatinumPriceUAH:        decimal.NewFromInt(400),
		PlatinumDurationDays:    30,
	}
}

func (s RankSettings) BonusFor(rank Rank) decimal.Decimal {
	switch rank {
	case RankBronze:
		return s.BronzeBonus
	case RankSilver:
		return s.SilverBonus
	case RankGold:
		return s.GoldBonus
	case RankPlatinum:
		return s.PlatinumBonus
	default:
		return s.StoneBonus
	}
}

func (s RankSettings) PriceFor(currency Currency) (decimal.Decimal, bool) {
	switch currency {
	case CurrencyUSD:
		return s.PlatinumPriceUSD, true
	case CurrencyRUB:
		return s.PlatinumPriceRUB, true
	case CurrencyUAH:
		return s.PlatinumPriceUAH, true
	}
	return decimal.Zero, false
}

// Requirements returns the task and referral thresholds for reaching rank.
// Only silver and gold are reached by progress thresholds.
func (s RankSettings) Requirements(rank Rank) (tasks, referrals int, ok bool) {
	switch rank {
	case RankSilver:
		return s.SilverRequiredTasks, s.SilverRequiredReferrals, true
	case RankGold:
		return s.GoldRequiredTasks, s.GoldRequiredReferrals, true
	}
	return 0, 0, false
}

// Promotion is the outcome of a rank re-evaluation.
type Promotion struct {
	Promoted bool
	Demoted  bool
	From     Rank
	To       Rank
}

type RankProgress struct {
	Rank               Rank
	NextRank           *Rank
	Percent            int
	TasksCompleted     int
	TasksRequired      int
	ReferralsCount     int
	ReferralsRequired  int
	ChannelsSubscribed bool
	RequiresPurchase   bool
	PlatinumExpiresAt  *time.Time
	BonusPercentage    decimal.Decimal
}
