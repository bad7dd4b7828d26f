package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CommerceMetrics records counters for the checkout and sale paths.
type CommerceMetrics struct {
	ordersCreated  *prometheus.CounterVec
	salesCreated   prometheus.Counter
	stockConflicts *prometheus.CounterVec
	cartMerges     prometheus.Counter
	txDuration     *prometheus.HistogramVec
}

// NewCommerceMetrics registers the commerce metrics on the provided registerer.
func NewCommerceMetrics(reg prometheus.Registerer) *CommerceMetrics {
	if reg == nil {
		return &CommerceMetrics{}
	}
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders created, partitioned by outcome.",
	}, []string{"outcome"})
	salesCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sales_created_total",
		Help: "Point-of-sale sales recorded.",
	})
	stockConflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_conflicts_total",
		Help: "Guarded stock decrements rejected for insufficient stock.",
	}, []string{"source"})
	cartMerges := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_merges_total",
		Help: "Anonymous carts merged into customer carts at login.",
	})
	txDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "commerce_tx_duration_seconds",
		Help:    "Duration of checkout and sale transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(ordersCreated, salesCreated, stockConflicts, cartMerges, txDuration)
	return &CommerceMetrics{
		ordersCreated:  ordersCreated,
		salesCreated:   salesCreated,
		stockConflicts: stockConflicts,
		cartMerges:     cartMerges,
		txDuration:     txDuration,
	}
}

// IncOrderCreated increments the order counter for the given outcome.
func (c *CommerceMetrics) IncOrderCreated(outcome string) {
	if c == nil || c.ordersCreated == nil {
		return
	}
	c.ordersCreated.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncSaleCreated increments the sale counter.
func (c *CommerceMetrics) IncSaleCreated() {
	if c == nil || c.salesCreated == nil {
		return
	}
	c.salesCreated.Inc()
}

// IncStockConflict increments the insufficient-stock counter for the named source.
func (c *CommerceMetrics) IncStockConflict(source string) {
	if c == nil || c.stockConflicts == nil {
		return
	}
	c.stockConflicts.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncCartMerge increments the cart merge counter.
func (c *CommerceMetrics) IncCartMerge() {
	if c == nil || c.cartMerges == nil {
		return
	}
	c.cartMerges.Inc()
}

// ObserveTxDuration records the duration of the named transactional operation.
func (c *CommerceMetrics) ObserveTxDuration(operation string, duration time.Duration) {
	if c == nil || c.txDuration == nil {
		return
	}
	c.txDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
