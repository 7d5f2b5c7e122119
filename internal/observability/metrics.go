package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts backend requests by method, weight class and outcome.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questline_http_requests_total",
		Help: "Total backend requests by method, kind and outcome",
	}, []string{"method", "kind", "outcome"})

	// HTTPRequestLatency records backend request latency.
	HTTPRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "questline_http_request_duration_seconds",
		Help:    "Backend request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "kind"})

	// Mutations counts optimistic mutations by entity and final outcome.
	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questline_mutations_total",
		Help: "Optimistic mutations by entity and outcome",
	}, []string{"entity", "outcome"})

	// FeedAssemblies counts feed assemblies by the path that produced them.
	FeedAssemblies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questline_feed_assemblies_total",
		Help: "Feed assemblies by resolution path",
	}, []string{"path"})

	// NormalizerRejects counts records dropped by the normalizer.
	NormalizerRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questline_normalizer_rejects_total",
		Help: "Records rejected by the normalizer",
	}, []string{"entity"})

	// AchievementUnlocks counts unlock attempts by category and result.
	AchievementUnlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questline_achievement_unlocks_total",
		Help: "Achievement unlock attempts by category and result",
	}, []string{"category", "result"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questline_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})
)

// TrackRequest returns a function that records request latency and outcome when called (e.g. defer).
func TrackRequest(method, kind string) func(outcome string) {
	start := time.Now()
	return func(outcome string) {
		HTTPRequestLatency.WithLabelValues(method, kind).Observe(time.Since(start).Seconds())
		HTTPRequests.WithLabelValues(method, kind, outcome).Inc()
	}
}

// RecordMutation increments the mutation counter.
func RecordMutation(entity, outcome string) {
	Mutations.WithLabelValues(entity, outcome).Inc()
}

// RecordFeedPath increments the feed assembly counter for path.
func RecordFeedPath(path string) {
	FeedAssemblies.WithLabelValues(path).Inc()
}

// RecordReject increments the normalizer reject counter.
func RecordReject(entity string) {
	NormalizerRejects.WithLabelValues(entity).Inc()
}

// RecordUnlock increments the achievement unlock counter.
func RecordUnlock(category, result string) {
	AchievementUnlocks.WithLabelValues(category, result).Inc()
}
