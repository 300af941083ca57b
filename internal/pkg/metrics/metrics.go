package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/joinix/joinix/internal/pkg/resilience"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "joinix",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "joinix",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "joinix",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Outbound call resilience
	ResilienceAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "joinix",
		Subsystem: "resilience",
		Name:      "attempts_total",
		Help:      "Outbound call attempts by operation and outcome",
	}, []string{"op", "outcome"})

	ResilienceAttemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "joinix",
		Subsystem: "resilience",
		Name:      "attempt_duration_seconds",
		Help:      "Duration of a single outbound call attempt",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"op"})

	ResilienceRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "joinix",
		Subsystem: "resilience",
		Name:      "retries_total",
		Help:      "Retries scheduled after a transient failure",
	}, []string{"op"})

	ResilienceBackoff = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "joinix",
		Subsystem: "resilience",
		Name:      "backoff_seconds",
		Help:      "Delay slept before a retry",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
	})

	ResilienceGiveUps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "joinix",
		Subsystem: "resilience",
		Name:      "giveups_total",
		Help:      "Operations that failed for good, by failure kind",
	}, []string{"op", "reason"})

	ResilienceFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "joinix",
		Subsystem: "resilience",
		Name:      "fallbacks_total",
		Help:      "Times a primary path failed and its fallback ran",
	}, []string{"op"})

	// Domain
	EventsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "joinix",
		Subsystem: "events",
		Name:      "created_total",
		Help:      "Events created",
	})

	EventsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "joinix",
		Subsystem: "events",
		Name:      "completed_total",
		Help:      "Events moved to completed by the lifecycle worker",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "joinix",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "joinix",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "joinix",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "joinix",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "joinix",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})

	DBPoolEmptyAcquires = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "joinix",
		Subsystem: "db",
		Name:      "pool_empty_acquires",
		Help:      "Acquires that had to wait for a new or released connection",
	})

	DBPoolAcquireWait = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "joinix",
		Subsystem: "db",
		Name:      "pool_acquire_wait_seconds",
		Help:      "Cumulative time spent waiting for a pooled connection",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		// fiber resolves the route pattern, which keeps ids out of the labels
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics copies a pgxpool snapshot into the pool gauges.
func UpdateDBPoolMetrics(stat *pgxpool.Stat) {
	if stat == nil {
		return
	}
	DBPoolConnsAcquired.Set(float64(stat.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(stat.IdleConns()))
	DBPoolConnsOpen.Set(float64(stat.TotalConns()))
	DBPoolEmptyAcquires.Set(float64(stat.EmptyAcquireCount()))
	DBPoolAcquireWait.Set(stat.AcquireDuration().Seconds())
}

// ResilienceObserver exports executor callbacks as Prometheus series.
type ResilienceObserver struct{}

var _ resilience.Observer = ResilienceObserver{}

func (ResilienceObserver) OnAttempt(op string, _ int, elapsed time.Duration, err error) {
	ResilienceAttemptDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	ResilienceAttempts.WithLabelValues(op, outcome(err)).Inc()
}

func (ResilienceObserver) OnRetry(op string, _ int, delay time.Duration, _ error) {
	ResilienceRetries.WithLabelValues(op).Inc()
	ResilienceBackoff.Observe(delay.Seconds())
}

func (ResilienceObserver) OnGiveUp(op string, _ int, err error) {
	ResilienceGiveUps.WithLabelValues(op, outcome(err)).Inc()
}

// RecordFallback counts a primary path that failed over to its fallback.
func RecordFallback(op string, _ error) {
	ResilienceFallbacks.WithLabelValues(op).Inc()
}

func outcome(err error) string {
	var terminal *resilience.TerminalError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &terminal):
		return "exhausted"
	default:
		return resilience.KindOf(err).String()
	}
}

// PoolStatsSource is satisfied by the postgres adapter.
type PoolStatsSource interface {
	Stat() *pgxpool.Stat
}

// PollPoolStats refreshes the pool gauges every interval until stop is closed.
func PollPoolStats(src PoolStatsSource, interval time.Duration, stop <-chan struct{}) {
	UpdateDBPoolMetrics(src.Stat())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			UpdateDBPoolMetrics(src.Stat())
		}
	}
}
