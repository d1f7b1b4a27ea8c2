package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	OTPRequests        *prometheus.CounterVec
	Rotations          *prometheus.CounterVec
	RotationRejections prometheus.Counter
	SideEffectFailures *prometheus.CounterVec
	MailboxFetchTime   prometheus.Histogram
	SyncRuns           prometheus.Counter
	SyncMessages       *prometheus.CounterVec
	ConfiguredAccounts prometheus.Gauge
}

// NewMetrics creates the gateway metrics on reg.
// A nil reg registers on the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		OTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "otp_gateway_requests_total",
			Help: "Total number of OTP requests by outcome",
		}, []string{"outcome"}),
		Rotations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "otp_gateway_rotations_total",
			Help: "Total number of PIN rotations by mode",
		}, []string{"mode"}),
		RotationRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "otp_gateway_rotation_rejections_total",
			Help: "Rotation triggers rejected because a rotation was already in flight",
		}),
		SideEffectFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "otp_gateway_rotation_side_effect_failures_total",
			Help: "Failed notification or ledger writes after a rotation",
		}, []string{"target"}),
		MailboxFetchTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "otp_gateway_mailbox_fetch_duration_seconds",
			Help:    "Time spent retrieving a code from a mailbox",
			Buckets: prometheus.DefBuckets,
		}),
		SyncRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "otp_gateway_sync_runs_total",
			Help: "Total number of rotation sync runs",
		}),
		SyncMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "otp_gateway_sync_messages_total",
			Help: "Rotation notifications replayed into the ledger by result",
		}, []string{"result"}),
		ConfiguredAccounts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "otp_gateway_configured_accounts",
			Help: "Number of configured accounts",
		}),
	}
}

// OrUnregistered returns m, or metrics on a private registry when m is nil
func OrUnregistered(m *Metrics) *Metrics {
	if m != nil {
		return m
	}
	return NewMetrics(prometheus.NewRegistry())
}
