package service

import (
	"context"
	"time"

	"taskbot/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type staticConfig struct {
	cfg *EngineConfig
}

func (s staticConfig) Config(context.Context) (*EngineConfig, error) {
	return s.cfg, nil
}

func testConfig() *EngineConfig {
	return &EngineConfig{
		Rank:                model.DefaultRankSettings(),
		ModerationThreshold: decimal.NewFromInt(DefaultModerationThreshold),
	}
}

func fixedNow() time.Time {
	return testNow
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// decEq matches a decimal argument by value rather than representation.
func decEq(s string) interface{} {
	want := dec(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(want)
	})
}

func eventOfType(t model.EventType) interface{} {
	return mock.MatchedBy(func(e model.Event) bool {
		return e.Type == t
	})
}

func timePtr(t time.Time) *time.Time {
	return &t
}
