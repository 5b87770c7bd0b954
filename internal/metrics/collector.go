package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，实现各业务包定义的观测接口：
// trace.Recorder、session.Recorder、session.Gauge、store.Recorder、
// cache.HitRecorder 与 database.StatsRecorder。
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 追踪构建指标
	traceBuildsTotal   *prometheus.CounterVec
	traceBuildDuration *prometheus.HistogramVec
	traceItems         prometheus.Histogram

	// 会话指标
	sessionStepsTotal   *prometheus.CounterVec
	sessionStepDuration prometheus.Histogram
	sessionRunsTotal    *prometheus.CounterVec
	sessionRunSteps     prometheus.Histogram
	sessionsActive      prometheus.Gauge

	// 存储指标
	storeOpsTotal   *prometheus.CounterVec
	storeOpDuration *prometheus.HistogramVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 数据库连接池
	dbConnections *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器并注册到默认 Registry
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 追踪构建
	c.traceBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trace_builds_total",
			Help:      "Total number of trace builds by outcome",
		},
		[]string{"status"}, // ok, too_large, canceled, error
	)

	c.traceBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trace_build_duration_seconds",
			Help:      "Trace build duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"status"},
	)

	c.traceItems = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trace_items",
			Help:      "Number of atomic steps per built trace",
			Buckets:   prometheus.ExponentialBuckets(1, 10, 6),
		},
	)

	// 会话
	c.sessionStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_steps_total",
			Help:      "Total number of executed session steps by outcome",
		},
		[]string{"outcome"}, // ok, error
	)

	c.sessionStepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_step_duration_seconds",
			Help:      "Session step duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.sessionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_runs_total",
			Help:      "Total number of run-all invocations by status",
		},
		[]string{"status"},
	)

	c.sessionRunSteps = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_run_steps",
			Help:      "Number of steps executed per run-all",
			Buckets:   prometheus.ExponentialBuckets(1, 10, 6),
		},
	)

	c.sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live sessions",
		},
	)

	// 存储
	c.storeOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Total number of store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	c.storeOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// 缓存
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// 数据库
	c.dbConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections",
			Help:      "Database pool connections by state",
		},
		[]string{"state"}, // open, in_use, idle
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🧭 追踪与会话
// =============================================================================

// RecordTraceBuild 记录一次追踪构建
func (c *Collector) RecordTraceBuild(status string, items int, duration time.Duration) {
	c.traceBuildsTotal.WithLabelValues(status).Inc()
	c.traceBuildDuration.WithLabelValues(status).Observe(duration.Seconds())
	c.traceItems.Observe(float64(items))
}

// RecordSessionStep 记录一次单步执行
func (c *Collector) RecordSessionStep(outcome string, duration time.Duration) {
	c.sessionStepsTotal.WithLabelValues(outcome).Inc()
	c.sessionStepDuration.Observe(duration.Seconds())
}

// RecordSessionRun 记录一次批量执行
func (c *Collector) RecordSessionRun(status string, steps int, duration time.Duration) {
	c.sessionRunsTotal.WithLabelValues(status).Inc()
	c.sessionRunSteps.Observe(float64(steps))
	c.logger.Debug("session run recorded",
		zap.String("status", status),
		zap.Int("steps", steps),
		zap.Duration("duration", duration),
	)
}

// SetActiveSessions 设置当前会话数
func (c *Collector) SetActiveSessions(n int) {
	c.sessionsActive.Set(float64(n))
}

// =============================================================================
// 💾 存储、缓存与数据库
// =============================================================================

// RecordStoreOp 记录一次存储操作
func (c *Collector) RecordStoreOp(backend, op string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.storeOpsTotal.WithLabelValues(backend, op, status).Inc()
	c.storeOpDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
}

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordDBPool 记录数据库连接池状态
func (c *Collector) RecordDBPool(open, inUse, idle int) {
	c.dbConnections.WithLabelValues("open").Set(float64(open))
	c.dbConnections.WithLabelValues("in_use").Set(float64(inUse))
	c.dbConnections.WithLabelValues("idle").Set(float64(idle))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
