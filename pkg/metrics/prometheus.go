// Package metrics provides Prometheus metrics for the tatami match engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus collectors for the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Scoring metrics
	votesCast          prometheus.Counter
	votesRejected      *prometheus.CounterVec
	consensusDecisions prometheus.Counter
	eventsAppended     *prometheus.CounterVec
	directEvents       prometheus.Counter

	// Match lifecycle metrics
	roundsStarted    prometheus.Counter
	roundsEnded      prometheus.Counter
	matchesEnded     prometheus.Counter
	matchesCancelled prometheus.Counter
	unresolvedTies   prometheus.Counter
	timerExpirations prometheus.Counter
	commandLatency   *prometheus.HistogramVec

	// Operational health metrics
	activeMatches prometheus.Gauge

	// Persistence pipeline metrics
	persistQueueSize        prometheus.Gauge
	persistQueueCapacity    prometheus.Gauge
	persistQueueUtilization prometheus.Gauge
	persistWorkers          prometheus.Gauge
	persistOps              *prometheus.CounterVec
	persistErrors           *prometheus.CounterVec
	persistLatency          prometheus.Histogram
	persistDropped          prometheus.Counter
	snapshotFlushes         prometheus.Counter
	snapshotLastUnix        prometheus.Gauge

	// Standings metrics
	standingsCompetitions  prometheus.Gauge
	standingsCompetitors   prometheus.Gauge
	standingsUpdateLatency prometheus.Histogram
	standingsQueryLatency  prometheus.Histogram

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorsByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid the default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tatami",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat collector registration
	auto := promauto.With(m.registry)

	m.votesCast = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "votes_cast_total",
		Help:      "Total number of assessor votes accepted into a decision window",
	})

	m.votesRejected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "votes_rejected_total",
			Help:      "Total number of rejected votes by reason",
		},
		[]string{"reason"},
	)

	m.consensusDecisions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "consensus_decisions_total",
		Help:      "Total number of decision windows resolved by assessor majority",
	})

	m.eventsAppended = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_appended_total",
			Help:      "Total number of score events appended to ledgers by kind",
		},
		[]string{"kind"},
	)

	m.directEvents = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "direct_events_total",
		Help:      "Total number of events recorded directly by a judge",
	})

	m.roundsStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rounds_started_total",
		Help:      "Total number of rounds started",
	})

	m.roundsEnded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rounds_ended_total",
		Help:      "Total number of rounds ended (manual or timer expiry)",
	})

	m.matchesEnded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_ended_total",
		Help:      "Total number of matches that reached ENDED",
	})

	m.matchesCancelled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_cancelled_total",
		Help:      "Total number of matches that reached CANCELLED",
	})

	m.unresolvedTies = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "unresolved_ties_total",
		Help:      "Total number of matches ended tied after all allowed rounds",
	})

	m.timerExpirations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "timer_expirations_total",
		Help:      "Total number of rounds ended by timer expiry",
	})

	m.commandLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "command_latency_milliseconds",
			Help:      "Control command processing latency in milliseconds by action",
			Buckets:   m.histogramBuckets,
		},
		[]string{"action"},
	)

	m.activeMatches = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_matches",
		Help:      "Number of matches currently held by the engine",
	})

	m.persistQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_queue_size",
		Help:      "Current size of the persistence operation queue",
	})

	m.persistQueueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_queue_capacity",
		Help:      "Configured capacity of the persistence operation queue",
	})

	m.persistQueueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_queue_utilization_ratio",
		Help:      "Persistence queue fill ratio (size / capacity)",
	})

	m.persistWorkers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_workers",
		Help:      "Number of persistence workers draining the queue",
	})

	m.persistOps = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "persist_ops_total",
			Help:      "Total persistence operations executed by kind",
		},
		[]string{"kind"},
	)

	m.persistErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "persist_errors_total",
			Help:      "Total persistence operation failures by kind",
		},
		[]string{"kind"},
	)

	m.persistLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_latency_milliseconds",
		Help:      "Persistence operation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.persistDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_dropped_total",
		Help:      "Total persistence operations dropped due to backpressure",
	})

	m.snapshotFlushes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_flushes_total",
		Help:      "Total scoreboard snapshot flushes to the gateway",
	})

	m.snapshotLastUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_last_unix_seconds",
		Help:      "Unix time of the most recent snapshot flush",
	})

	m.standingsCompetitions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "standings_competitions",
		Help:      "Number of competitions with a standings board",
	})

	m.standingsCompetitors = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "standings_competitors",
		Help:      "Total competitors ranked across all standings boards",
	})

	m.standingsUpdateLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "standings_update_latency_milliseconds",
		Help:      "Standings result recording latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.standingsQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "standings_query_latency_milliseconds",
		Help:      "Standings read query latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint, method and status",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_total",
			Help:      "Total errors by component and kind",
		},
		[]string{"component", "kind"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
		Help:      "Current allocated heap bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutines",
		Help:      "Current number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_milliseconds",
		Help:      "Observed GC pause time in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// Package-level helpers recording against the global manager.

func RecordVoteCast()                 { globalManager.votesCast.Inc() }
func RecordVoteRejected(reason string) {
	globalManager.votesRejected.WithLabelValues(reason).Inc()
}
func RecordConsensusDecision() { globalManager.consensusDecisions.Inc() }
func RecordEventAppended(kind string) {
	globalManager.eventsAppended.WithLabelValues(kind).Inc()
}
func RecordDirectEvent()     { globalManager.directEvents.Inc() }
func RecordRoundStarted()    { globalManager.roundsStarted.Inc() }
func RecordRoundEnded()      { globalManager.roundsEnded.Inc() }
func RecordMatchEnded()      { globalManager.matchesEnded.Inc() }
func RecordMatchCancelled()  { globalManager.matchesCancelled.Inc() }
func RecordUnresolvedTie()   { globalManager.unresolvedTies.Inc() }
func RecordTimerExpiration() { globalManager.timerExpirations.Inc() }

func RecordCommandLatency(action string, latencyMs float64) {
	globalManager.commandLatency.WithLabelValues(action).Observe(latencyMs)
}

func UpdateActiveMatches(count int) { globalManager.activeMatches.Set(float64(count)) }

func UpdatePersistQueueSize(size int) { globalManager.persistQueueSize.Set(float64(size)) }
func UpdatePersistQueueCapacity(capacity int) {
	globalManager.persistQueueCapacity.Set(float64(capacity))
}
func UpdatePersistQueueUtilization(ratio float64) {
	globalManager.persistQueueUtilization.Set(ratio)
}
func UpdatePersistWorkers(count int) { globalManager.persistWorkers.Set(float64(count)) }

func RecordPersistOp(kind string)    { globalManager.persistOps.WithLabelValues(kind).Inc() }
func RecordPersistError(kind string) { globalManager.persistErrors.WithLabelValues(kind).Inc() }
func RecordPersistLatency(latencyMs float64) {
	globalManager.persistLatency.Observe(latencyMs)
}
func RecordPersistDropped() { globalManager.persistDropped.Inc() }

func RecordSnapshotFlush(unixSeconds int64) {
	globalManager.snapshotFlushes.Inc()
	globalManager.snapshotLastUnix.Set(float64(unixSeconds))
}

func UpdateStandingsCompetitions(count int) {
	globalManager.standingsCompetitions.Set(float64(count))
}

func UpdateStandingsCompetitors(count int) {
	globalManager.standingsCompetitors.Set(float64(count))
}

func RecordStandingsUpdateLatency(latencyMs float64) {
	globalManager.standingsUpdateLatency.Observe(latencyMs)
}

func RecordStandingsQueryLatency(latencyMs float64) {
	globalManager.standingsQueryLatency.Observe(latencyMs)
}

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

func RecordErrorByComponent(component, kind string) {
	globalManager.errorsByComponent.WithLabelValues(component, kind).Inc()
}

func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry all engine metrics are registered on,
// for exposition via promhttp.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
