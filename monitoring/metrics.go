package monitoring

import (
	"context"
	"log/slog"
	"time"

	"quote-booking/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	quoteTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_transitions_total",
			Help: "Quote lifecycle transitions by event and result",
		},
		[]string{"event", "result"},
	)

	paymentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_outcomes_total",
			Help: "Deposit payment outcomes",
		},
		[]string{"outcome"},
	)

	paymentCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Navigation events classified by the callback interceptor",
		},
		[]string{"outcome"},
	)

	settlementInconsistencies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_inconsistencies_total",
			Help: "Paid deposits whose quote could not be booked in the same call",
		},
	)

	unsettledDeposits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unsettled_deposits",
			Help: "Paid deposits waiting for their quote to be booked",
		},
	)

	reconcileRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_runs_total",
			Help: "Reconciliation passes by result",
		},
		[]string{"result"},
	)

	gatewayValidateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_validate_duration_seconds",
			Help:    "Duration of gateway notification validation calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 8),
		},
		[]string{"result"},
	)
)

// TrackTransition counts a lifecycle attempt; result is "applied" or "rejected".
func TrackTransition(event, result string) {
	quoteTransitions.WithLabelValues(event, result).Inc()
}

func TrackPaymentOutcome(outcome string) {
	paymentOutcomes.WithLabelValues(outcome).Inc()
}

func TrackCallback(outcome string) {
	paymentCallbacks.WithLabelValues(outcome).Inc()
}

func TrackSettlementInconsistency() {
	settlementInconsistencies.Inc()
}

func TrackReconcile(result string) {
	reconcileRuns.WithLabelValues(result).Inc()
}

func ObserveGatewayValidate(result string, d time.Duration) {
	gatewayValidateDuration.WithLabelValues(result).Observe(d.Seconds())
}

type Monitor struct {
	redis redis.Cmdable
}

func NewMonitor(redisClient redis.Cmdable) *Monitor {
	return &Monitor{redis: redisClient}
}

// Run collects store gauges every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.collect(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) collect(ctx context.Context) {
	n, err := m.redis.SCard(ctx, store.AwaitingSettlementKey).Result()
	if err != nil {
		slog.Warn("collect unsettled deposits", "error", err)
		return
	}
	unsettledDeposits.Set(float64(n))
}
