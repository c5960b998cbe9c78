package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type giftCardMetrics struct {
	requests   *prometheus.CounterVec
	purchases  prometheus.Counter
	spillovers prometheus.Counter
	commission prometheus.Counter
}

var (
	giftCardMetricsOnce sync.Once
	giftCardRegistry    *giftCardMetrics
)

// GiftCard returns the lazily-initialised metrics registry tracking ledger
// operation activity.
func GiftCard() *giftCardMetrics {
	giftCardMetricsOnce.Do(func() {
		giftCardRegistry = &giftCardMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "solbox",
				Subsystem: "giftcard",
				Name:      "requests_total",
				Help:      "Total ledger operations segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			purchases: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "solbox",
				Subsystem: "giftcard",
				Name:      "purchases_total",
				Help:      "Count of successful gift card purchases.",
			}),
			spillovers: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "solbox",
				Subsystem: "giftcard",
				Name:      "spillovers_total",
				Help:      "Count of purchases credited to a spillover referrer.",
			}),
			commission: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "solbox",
				Subsystem: "giftcard",
				Name:      "commission_distributed_base_units",
				Help:      "Cumulative commission distributed in base units.",
			}),
		}
		prometheus.MustRegister(
			giftCardRegistry.requests,
			giftCardRegistry.purchases,
			giftCardRegistry.spillovers,
			giftCardRegistry.commission,
		)
	})
	return giftCardRegistry
}

// RecordRequest increments the operation counter for the supplied method and
// outcome ("ok" or "error").
func (m *giftCardMetrics) RecordRequest(method, outcome string) {
	if m == nil {
		return
	}
	method = strings.TrimSpace(method)
	if method == "" {
		method = "unknown"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
}

// RecordPurchase tracks a successful purchase and its commission share.
func (m *giftCardMetrics) RecordPurchase(commission uint64, spillover bool) {
	if m == nil {
		return
	}
	m.purchases.Inc()
	m.commission.Add(float64(commission))
	if spillover {
		m.spillovers.Inc()
	}
}
