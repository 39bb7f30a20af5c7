package voice

import "github.com/prometheus/client_golang/prometheus"

// Close reasons used as metric labels.
const (
	reasonLeave   = "leave"
	reasonHanging = "hanging"
	reasonForced  = "forced"
)

// Metrics holds the session accounting counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	sessionsOpened  prometheus.Counter
	sessionsClosed  *prometheus.CounterVec
	closesRejected  *prometheus.CounterVec
	splitMismatches prometheus.Counter
	purgedRows      *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them on registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	sessionsOpened := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voicetally",
		Subsystem: "sessions",
		Name:      "opened_total",
		Help:      "Voice sessions opened.",
	})
	registerer.MustRegister(sessionsOpened)

	sessionsClosed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicetally",
			Subsystem: "sessions",
			Name:      "closed_total",
			Help:      "Voice sessions closed, by reason.",
		},
		[]string{"reason"},
	)
	registerer.MustRegister(sessionsClosed)

	closesRejected := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicetally",
			Subsystem: "sessions",
			Name:      "close_rejected_total",
			Help:      "Session closes that were rejected or failed.",
		},
		[]string{"reason", "error_type"},
	)
	registerer.MustRegister(closesRejected)

	splitMismatches := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voicetally",
		Subsystem: "daily",
		Name:      "split_mismatches_total",
		Help:      "Closed sessions whose daily split did not match their duration.",
	})
	registerer.MustRegister(splitMismatches)

	purgedRows := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicetally",
			Subsystem: "retention",
			Name:      "purged_rows_total",
			Help:      "Rows removed by retention, by table.",
		},
		[]string{"table"},
	)
	registerer.MustRegister(purgedRows)

	return &Metrics{
		sessionsOpened:  sessionsOpened,
		sessionsClosed:  sessionsClosed,
		closesRejected:  closesRejected,
		splitMismatches: splitMismatches,
		purgedRows:      purgedRows,
	}
}

func (m *Metrics) opened() {
	if m == nil {
		return
	}
	m.sessionsOpened.Inc()
}

func (m *Metrics) closed(reason string) {
	if m == nil {
		return
	}
	m.sessionsClosed.WithLabelValues(reason).Inc()
}

func (m *Metrics) rejected(reason, errorType string) {
	if m == nil {
		return
	}
	m.closesRejected.WithLabelValues(reason, errorType).Inc()
}

func (m *Metrics) mismatch() {
	if m == nil {
		return
	}
	m.splitMismatches.Inc()
}

func (m *Metrics) purged(res PurgeResult) {
	if m == nil {
		return
	}
	m.purgedRows.WithLabelValues("voice_sessions").Add(float64(res.Sessions))
	m.purgedRows.WithLabelValues("voice_daily").Add(float64(res.Buckets))
}
