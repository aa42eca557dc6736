package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ransim",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ransim",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	ngapMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ransim",
			Subsystem: "ngap",
			Name:      "messages_total",
			Help:      "NGAP PDUs by direction and procedure.",
		},
		[]string{"direction", "message"},
	)
	ngapAborts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ransim",
			Subsystem: "ngap",
			Name:      "send_aborts_total",
			Help:      "Outbound NGAP PDUs dropped before transmission.",
		},
		[]string{"message", "reason"},
	)
	amfState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ransim",
			Subsystem: "ngap",
			Name:      "amf_state",
			Help:      "Association state per AMF context (0 not connected, 1 waiting setup, 2 connected).",
		},
		[]string{"amf"},
	)
	amfOverloaded = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ransim",
			Subsystem: "ngap",
			Name:      "amf_overloaded",
			Help:      "1 while the AMF has signalled overload.",
		},
		[]string{"amf"},
	)
	barrierRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ransim",
			Subsystem: "barrier",
			Name:      "runs_total",
			Help:      "Pause barrier attempts by outcome.",
		},
		[]string{"outcome"},
	)
	barrierWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ransim",
			Subsystem: "barrier",
			Name:      "pause_wait_seconds",
			Help:      "Time spent waiting for every task to confirm pause.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 3},
		},
	)
	adminCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ransim",
			Subsystem: "admin",
			Name:      "commands_total",
			Help:      "Admin commands by kind and outcome.",
		},
		[]string{"command", "success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			ngapMessages, ngapAborts, amfState, amfOverloaded,
			barrierRuns, barrierWait,
			adminCommands,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordNgapSent(message string) {
	RegisterMetrics()
	ngapMessages.WithLabelValues("sent", message).Inc()
}

func RecordNgapReceived(message string) {
	RegisterMetrics()
	ngapMessages.WithLabelValues("received", message).Inc()
}

func RecordNgapAbort(message, reason string) {
	RegisterMetrics()
	ngapAborts.WithLabelValues(message, reason).Inc()
}

func SetAmfState(amfID int, state int) {
	RegisterMetrics()
	amfState.WithLabelValues(strconv.Itoa(amfID)).Set(float64(state))
}

func SetAmfOverloaded(amfID int, overloaded bool) {
	RegisterMetrics()
	v := 0.0
	if overloaded {
		v = 1
	}
	amfOverloaded.WithLabelValues(strconv.Itoa(amfID)).Set(v)
}

// ForgetAmf drops the per-AMF series of a deleted context.
func ForgetAmf(amfID int) {
	RegisterMetrics()
	label := strconv.Itoa(amfID)
	amfState.DeleteLabelValues(label)
	amfOverloaded.DeleteLabelValues(label)
}

func RecordBarrier(outcome string, wait time.Duration) {
	RegisterMetrics()
	barrierRuns.WithLabelValues(outcome).Inc()
	barrierWait.Observe(wait.Seconds())
}

func RecordAdminCommand(command string, success bool) {
	RegisterMetrics()
	adminCommands.WithLabelValues(command, strconv.FormatBool(success)).Inc()
}
