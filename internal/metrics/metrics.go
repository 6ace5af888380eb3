package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersTotal counts transfer intents entering each status
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_transfers_total",
			Help: "Total number of transfer intent status transitions",
		},
		[]string{"status"},
	)

	// TransfersInFlight tracks transfers the coordinator is currently driving
	TransfersInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_transfers_in_flight",
			Help: "Number of transfer intents between creation and a terminal state",
		},
	)

	// StrandedTransfersTotal counts release failures after confirmed escrow
	StrandedTransfersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_stranded_transfers_total",
			Help: "Total number of transfers stranded by a failed release",
		},
	)

	// StrandedRecoveriesTotal counts stranded transfers recovered by retry
	StrandedRecoveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_stranded_recoveries_total",
			Help: "Total number of stranded transfers recovered",
		},
	)

	// TransferDuration observes end-to-end transfer latency in seconds
	TransferDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bridge_transfer_duration_seconds",
			Help:    "End to end latency from intent creation to completion",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	// QueueDepth tracks pending rows in the relayer transaction queue
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_tx_queue_depth",
			Help: "Pending transactions in the relayer queue per chain",
		},
		[]string{"chain_id"},
	)

	// TransactionsSubmittedTotal counts signed transactions by chain and type
	TransactionsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_transactions_submitted_total",
			Help: "Total transactions submitted by the relayer",
		},
		[]string{"chain_id", "type"},
	)

	// TransactionsRevertedTotal counts on-chain reverts by chain and type
	TransactionsRevertedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_transactions_reverted_total",
			Help: "Total relayer transactions that reverted on chain",
		},
		[]string{"chain_id", "type"},
	)

	// RelayerBalance reports the relayer signing account balance in wei
	RelayerBalance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_relayer_balance_wei",
			Help: "Native token balance of the relayer account per chain",
		},
		[]string{"chain_id", "address"},
	)

	// NATSConnectionStatus 1 when the event stream connection is up
	NATSConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_nats_connection_status",
			Help: "NATS connection status (1 = connected, 0 = disconnected)",
		},
	)

	// WebsocketClients tracks connected status-push subscribers
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_websocket_clients",
			Help: "Number of connected websocket status subscribers",
		},
	)
)
