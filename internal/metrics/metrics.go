package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps the Prometheus collectors of the bot. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ticks         *prometheus.CounterVec
	tickDuration  prometheus.Histogram
	offerUpdates  *prometheus.CounterVec
	ordersGreeted prometheus.Counter
	orderPayments *prometheus.CounterVec
	trackedOrders *prometheus.GaugeVec
	venueRequests *prometheus.CounterVec
	venueLatency  *prometheus.HistogramVec
}

// New creates a registry and registers all bot metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "p2p_ticks_total",
			Help: "Total number of poll ticks by outcome.",
		}, []string{"result"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "p2p_tick_duration_seconds",
			Help:    "Duration of a full reconcile-then-fulfill tick.",
			Buckets: prometheus.DefBuckets,
		}),
		offerUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "p2p_offer_updates_total",
			Help: "Offer update attempts by side and outcome.",
		}, []string{"side", "result"}),
		ordersGreeted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "p2p_orders_greeted_total",
			Help: "Orders that received the acknowledgment message.",
		}),
		orderPayments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "p2p_orders_payment_total",
			Help: "Payment step outcomes for buy orders.",
		}, []string{"result"}),
		trackedOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "p2p_tracked_orders",
			Help: "Size of the in-memory order bookkeeping sets.",
		}, []string{"set"}),
		venueRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "p2p_venue_requests_total",
			Help: "Venue gateway calls by operation and outcome.",
		}, []string{"op", "result"}),
		venueLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "p2p_venue_request_seconds",
			Help:    "Venue gateway call latency by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}

	registry.MustRegister(
		m.ticks, m.tickDuration, m.offerUpdates, m.ordersGreeted,
		m.orderPayments, m.trackedOrders, m.venueRequests, m.venueLatency,
	)
	return m
}

// Handler exposes the registry plus a liveness check.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (m *Metrics) ObserveTick(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(result(err)).Inc()
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) IncOfferUpdate(side string, err error) {
	if m == nil {
		return
	}
	m.offerUpdates.WithLabelValues(side, result(err)).Inc()
}

func (m *Metrics) IncOrderGreeted() {
	if m == nil {
		return
	}
	m.ordersGreeted.Inc()
}

// IncOrderPayment records a payment step outcome: "paid", "no_terms" or
// "error".
func (m *Metrics) IncOrderPayment(outcome string) {
	if m == nil {
		return
	}
	m.orderPayments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetTrackedOrders(seen, paid int) {
	if m == nil {
		return
	}
	m.trackedOrders.WithLabelValues("seen").Set(float64(seen))
	m.trackedOrders.WithLabelValues("paid").Set(float64(paid))
}

func (m *Metrics) ObserveVenueCall(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.venueRequests.WithLabelValues(op, result(err)).Inc()
	m.venueLatency.WithLabelValues(op).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
