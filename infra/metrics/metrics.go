// Package metrics exposes the engine's operational counters. The WAL
// append histogram is the one to watch: that latency sits directly on
// the matching path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WALAppendSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wal_append_seconds",
		Help:    "Durable WAL append latency (write + fsync)",
		Buckets: prometheus.ExponentialBuckets(50e-6, 2, 14),
	})
	OrdersAcceptedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_accepted_total",
		Help: "Orders accepted, by symbol and outcome",
	}, []string{"symbol", "outcome"})
	OrdersRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Orders rejected at validation, by symbol and reason",
	}, []string{"symbol", "reason"})
	OrdersCancelledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Cancels applied, by symbol",
	}, []string{"symbol"})
	FillsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fills_total",
		Help: "Executions, by symbol",
	}, []string{"symbol"})
	DurabilityFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "durability_failures_total",
		Help: "Operations refused because the WAL append failed",
	}, []string{"symbol"})
	SnapshotsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshots_total",
		Help: "Snapshot attempts, by symbol and result",
	}, []string{"symbol", "result"})
	RestingOrders = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "resting_orders",
		Help: "Orders currently resting on the book",
	}, []string{"symbol"})
	BestPrice = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "best_price",
		Help: "Best occupied price per side, 0 when the side is empty",
	}, []string{"symbol", "side"})
	QuoteDropsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_drops_total",
		Help: "Quote updates dropped because the feed buffer was full",
	}, []string{"symbol"})
	OutboxPublishTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_total",
		Help: "Fill publications, by result",
	}, []string{"result"})
)

func Init() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		WALAppendSeconds,
		OrdersAcceptedTotal,
		OrdersRejectedTotal,
		OrdersCancelledTotal,
		FillsTotal,
		DurabilityFailuresTotal,
		SnapshotsTotal,
		RestingOrders,
		BestPrice,
		QuoteDropsTotal,
		OutboxPublishTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		_ = reg.Register(c)
	}
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
