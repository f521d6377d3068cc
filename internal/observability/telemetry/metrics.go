package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StationsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ocppsim_stations_total",
		Help: "Number of simulated stations in the registry",
	})

	StationsOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ocppsim_stations_online",
		Help: "Number of stations with an established CSMS connection",
	})

	ActiveTransactions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ocppsim_active_transactions",
		Help: "Number of transactions currently running across all stations",
	})

	EnergyDeliveredWh = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ocppsim_energy_delivered_wh_total",
		Help: "Total simulated energy delivered in Wh",
	})

	OCPPMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocppsim_ocpp_messages_total",
		Help: "Total OCPP messages by action and direction",
	}, []string{"action", "direction"})

	OCPPCallErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocppsim_ocpp_call_errors_total",
		Help: "Total CALLERROR frames by error code",
	}, []string{"code"})

	CallLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ocppsim_call_latency_seconds",
		Help:    "Round-trip latency of station calls to the CSMS",
		Buckets: prometheus.DefBuckets,
	})

	OfflineQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ocppsim_offline_queue_depth",
		Help: "Calls buffered while stations are offline",
	})

	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ocppsim_reconnects_total",
		Help: "Total websocket reconnections across all stations",
	})
)
