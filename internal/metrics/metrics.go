package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

const namespace = "taskbot"

// Metrics holds the engine's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	AttemptTransitions *prometheus.CounterVec
	RewardsGranted     prometheus.Counter
	RankPromotions     *prometheus.CounterVec
	PlatinumDemotions  prometheus.Counter
	PremiumRequests    *prometheus.CounterVec
	OracleChecks       *prometheus.CounterVec
	SweepRuns          *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		AttemptTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "attempts",
				Name:      "transitions_total",
				Help:      "Task attempt state transitions",
			},
			[]string{"status"},
		),
		RewardsGranted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rewards",
				Name:      "granted_amount_total",
				Help:      "Sum of effective rewards credited to balances",
			},
		),
		RankPromotions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ranks",
				Name:      "promotions_total",
				Help:      "Rank promotions by target tier",
			},
			[]string{"rank"},
		),
		PlatinumDemotions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ranks",
				Name:      "platinum_expired_total",
				Help:      "Platinum subscriptions demoted to gold after expiry",
			},
		),
		PremiumRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "premium",
				Name:      "requests_total",
				Help:      "Premium request transitions by payment method and status",
			},
			[]string{"method", "status"},
		),
		OracleChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "oracle",
				Name:      "checks_total",
				Help:      "Channel membership checks by result",
			},
			[]string{"result"},
		),
		SweepRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweep",
				Name:      "runs_total",
				Help:      "Platinum expiry sweep runs by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (m *Metrics) AttemptTransition(status string) {
	if m == nil {
		return
	}
	m.AttemptTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) RewardGranted(amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.RewardsGranted.Add(amount.InexactFloat64())
}

func (m *Metrics) RankPromoted(rank string) {
	if m == nil {
		return
	}
	m.RankPromotions.WithLabelValues(rank).Inc()
}

func (m *Metrics) PlatinumExpired() {
	if m == nil {
		return
	}
	m.PlatinumDemotions.Inc()
}

func (m *Metrics) PremiumRequest(method, status string) {
	if m == nil {
		return
	}
	m.PremiumRequests.WithLabelValues(method, status).Inc()
}

func (m *Metrics) OracleCheck(result string) {
	if m == nil {
		return
	}
	m.OracleChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) SweepRun(outcome string) {
	if m == nil {
		return
	}
	m.SweepRuns.WithLabelValues(outcome).Inc()
}
