package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	PrepareTotal   *prometheus.CounterVec
	BroadcastTotal *prometheus.CounterVec

	// 对账守护进程每周期指标
	ReconcileCheckedTotal   *prometheus.CounterVec
	ReconcileConfirmedTotal *prometheus.CounterVec
	ReconcileFailedTotal    *prometheus.CounterVec
	ReconcileErrorsTotal    *prometheus.CounterVec
	ReconcileCycleDuration  prometheus.Histogram

	IndexerDiscoveredTotal *prometheus.CounterVec
	WebhookDeliveriesTotal *prometheus.CounterVec
}

// Global Metrics Instance
var Business *BusinessMetrics

// InitBusinessMetrics 初始化业务指标
func InitBusinessMetrics() {
	Business = &BusinessMetrics{
		PrepareTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_tx_prepare_total",
			Help: "Unsigned transaction intents prepared",
		}, []string{"chain", "result"}),
		BroadcastTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_tx_broadcast_total",
			Help: "Signed transactions relayed to the network",
		}, []string{"chain", "result"}),
		ReconcileCheckedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_reconcile_checked_total",
			Help: "Transactions checked by the reconciliation daemon",
		}, []string{"chain"}),
		ReconcileConfirmedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_reconcile_confirmed_total",
			Help: "Transactions finalized as confirmed by the daemon",
		}, []string{"chain"}),
		ReconcileFailedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_reconcile_failed_total",
			Help: "Transactions finalized as failed by the daemon",
		}, []string{"chain"}),
		ReconcileErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_reconcile_errors_total",
			Help: "Status checks that returned no usable result (retried next cycle)",
		}, []string{"chain"}),
		ReconcileCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wallet_reconcile_cycle_duration_seconds",
			Help:    "Duration of one full reconciliation cycle",
			Buckets: prometheus.DefBuckets,
		}),
		IndexerDiscoveredTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_indexer_discovered_total",
			Help: "External transactions discovered by the history indexer",
		}, []string{"chain"}),
		WebhookDeliveriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_webhook_deliveries_total",
			Help: "Webhook delivery attempts",
		}, []string{"status"}),
	}
}
