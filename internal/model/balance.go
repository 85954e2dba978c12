package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type BalanceReason string

const (
	ReasonTaskReward      BalanceReason = "task_reward"
	ReasonPremiumPurchase BalanceReason = "premium_purchase"
)

// BalanceLog is an append-only ledger entry. BalanceAfter = BalanceBefore + Delta.
type BalanceLog struct {
	ID            int64
	UserID        int64
	Delta         decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Reason        BalanceReason
	Comment       string
	CreatedAt     time.Time
}
