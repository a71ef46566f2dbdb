package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VisitorsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coach_visitors_connected",
		Help: "Visitors with an open signal connection",
	})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coach_sessions_active",
		Help: "Avatar sessions in the connected phase",
	})

	SessionStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_session_starts_total",
		Help: "Session start attempts by outcome",
	}, []string{"outcome"})

	StartStepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coach_start_step_duration_seconds",
		Help:    "Per-step latency of the session start flow",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 20.0},
	}, []string{"step"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_errors_total",
		Help: "Error counts by stage",
	}, []string{"stage", "error_type"})

	TranscriptMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_transcript_messages_total",
		Help: "Finished transcript messages by sender",
	}, []string{"sender"})

	VendorEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_vendor_events_total",
		Help: "Vendor events received by kind",
	}, []string{"kind"})

	QualityReadings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_connection_quality_readings_total",
		Help: "Connection quality readings by value",
	}, []string{"quality"})

	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_access_tokens_total",
		Help: "Access token requests by outcome",
	}, []string{"outcome"})

	RelayedPackets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_relayed_rtp_packets_total",
		Help: "RTP packets relayed to visitor playback tracks by media kind",
	}, []string{"kind"})
)
