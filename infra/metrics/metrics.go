package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	OrdersAddedTotal     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "turbobook_orders_added_total", Help: "Orders accepted by the book"}, []string{"symbol", "side"})
	OrdersRejectedTotal  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "turbobook_orders_rejected_total", Help: "Orders rejected by the book"}, []string{"symbol", "reason"})
	OrdersCancelledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "turbobook_orders_cancelled_total", Help: "Resting orders cancelled"}, []string{"symbol"})
	TradesTotal          = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "turbobook_trades_total", Help: "Matching steps executed"}, []string{"symbol"})
	TradedQuantity       = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "turbobook_traded_quantity_total", Help: "Quantity matched"}, []string{"symbol"})
	AddLatencySeconds    = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "turbobook_add_order_seconds", Help: "AddOrder latency including matching", Buckets: prometheus.ExponentialBuckets(1e-7, 4, 12)}, []string{"symbol"})
	BookLevels           = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "turbobook_book_levels", Help: "Price levels per side"}, []string{"symbol", "side"})
	SpreadGauge          = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "turbobook_spread", Help: "Best ask minus best bid"}, []string{"symbol"})
	LiquidityScore       = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "turbobook_liquidity_score", Help: "Liquidity score in [0,1]"}, []string{"symbol"})
	FeedConnected        = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "turbobook_feed_connected", Help: "1 while the feed is connected"}, []string{"feed", "symbol"})
	FeedReconnectsTotal  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "turbobook_feed_reconnects_total", Help: "Feed reconnect attempts by outcome"}, []string{"feed", "outcome"})
	FeedMessagesTotal    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "turbobook_feed_messages_total", Help: "Feed messages by kind"}, []string{"feed", "kind"})
	PublishErrorsTotal   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "turbobook_publish_errors_total", Help: "Report or trade publish failures"}, []string{"sink"})
)

// Init registers the collectors on a fresh registry.
func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		OrdersAddedTotal, OrdersRejectedTotal, OrdersCancelledTotal,
		TradesTotal, TradedQuantity, AddLatencySeconds,
		BookLevels, SpreadGauge, LiquidityScore,
		FeedConnected, FeedReconnectsTotal, FeedMessagesTotal, PublishErrorsTotal,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		_ = reg.Register(c)
	}
	logger.Info().Msg("Prometheus metrics initialized")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
