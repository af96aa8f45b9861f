package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Chat metrics
	chatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "noura_chat_requests_total",
		Help: "Total number of remote chat requests",
	}, []string{"status"})

	chatLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "noura_chat_latency_seconds",
		Help:    "Remote chat latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Speech synthesis metrics
	ttsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "noura_tts_requests_total",
		Help: "Total number of speech synthesis requests",
	}, []string{"status"})

	ttsLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "noura_tts_latency_seconds",
		Help:    "Speech synthesis latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// Playback metrics
	playbackSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "noura_playback_sessions_total",
		Help: "Playback sessions by outcome",
	}, []string{"outcome"}) // completed, replaced, silent, failed

	playbackSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "noura_playback_audio_seconds_total",
		Help: "Seconds of decoded audio handed to the output device",
	})

	playing = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "noura_playback_active",
		Help: "1 while an utterance is playing",
	})

	// Speech capture metrics
	captureSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "noura_capture_sessions_total",
		Help: "Speech capture sessions by outcome",
	}, []string{"outcome"}) // recognized, empty, failed

	// Conversation metrics
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "noura_messages_total",
		Help: "Messages appended to the conversation history",
	}, []string{"role"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "noura_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "noura_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "noura_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordChat records one remote chat call
func RecordChat(start time.Time, success bool) {
	chatLatency.Observe(time.Since(start).Seconds())
	chatRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordTTS records one speech synthesis call
func RecordTTS(start time.Time, success bool) {
	ttsLatency.Observe(time.Since(start).Seconds())
	ttsRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordPlayback records how a playback session ended
func RecordPlayback(outcome string) {
	playbackSessions.WithLabelValues(outcome).Inc()
}

// RecordPlaybackAudio adds decoded audio duration handed to the device
func RecordPlaybackAudio(d time.Duration) {
	playbackSeconds.Add(d.Seconds())
}

// SetPlaying mirrors the engine's playing flag
func SetPlaying(active bool) {
	if active {
		playing.Set(1)
		return
	}
	playing.Set(0)
}

// RecordCapture records how a speech capture session ended
func RecordCapture(outcome string) {
	captureSessions.WithLabelValues(outcome).Inc()
}

// RecordMessage records a message appended to the history
func RecordMessage(role string) {
	messagesTotal.WithLabelValues(role).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
