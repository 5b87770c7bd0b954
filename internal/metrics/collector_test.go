package metrics

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/BaSui01/blockflow/internal/cache"
	"github.com/BaSui01/blockflow/internal/database"
	"github.com/BaSui01/blockflow/session"
	"github.com/BaSui01/blockflow/store"
	"github.com/BaSui01/blockflow/trace"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// 编译期确认 Collector 满足各观测接口
var (
	_ trace.Recorder         = (*Collector)(nil)
	_ session.Recorder       = (*Collector)(nil)
	_ session.Gauge          = (*Collector)(nil)
	_ store.Recorder         = (*Collector)(nil)
	_ cache.HitRecorder      = (*Collector)(nil)
	_ database.StatsRecorder = (*Collector)(nil)
)

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), nil)

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.traceBuildsTotal)
	assert.NotNil(t, collector.sessionStepsTotal)
	assert.NotNil(t, collector.storeOpsTotal)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("GET", "/api/v1/workflows", 200, 100*time.Millisecond, 2048)
	collector.RecordHTTPRequest("GET", "/api/v1/workflows", 204, 50*time.Millisecond, 0)
	collector.RecordHTTPRequest("GET", "/api/v1/workflows", 503, 10*time.Millisecond, 64)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/api/v1/workflows", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/api/v1/workflows", "5xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.httpRequestDuration))
}

func TestCollector_RecordTraceBuild(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordTraceBuild("ok", 12, time.Millisecond)
	collector.RecordTraceBuild("too_large", 100_000, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.traceBuildsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.traceBuildsTotal.WithLabelValues("too_large")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.traceItems))
}

func TestCollector_Sessions(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordSessionStep("ok", time.Millisecond)
	collector.RecordSessionStep("ok", time.Millisecond)
	collector.RecordSessionStep("error", time.Millisecond)
	collector.RecordSessionRun("failed", 3, time.Second)
	collector.SetActiveSessions(4)
	collector.SetActiveSessions(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.sessionStepsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.sessionStepsTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.sessionRunsTotal.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.sessionsActive))
}

func TestCollector_RecordStoreOp(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordStoreOp("gorm", "save", nil, 5*time.Millisecond)
	collector.RecordStoreOp("gorm", "save", errors.New("locked"), 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.storeOpsTotal.WithLabelValues("gorm", "save", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.storeOpsTotal.WithLabelValues("gorm", "save", "error")))
}

func TestCollector_RecordCacheOperation(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordCacheHit("draft")
	collector.RecordCacheMiss("draft")
	collector.RecordCacheMiss("draft")

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.cacheHits.WithLabelValues("draft")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.cacheMisses.WithLabelValues("draft")))
}

func TestCollector_RecordDBPool(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordDBPool(10, 3, 7)

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.dbConnections.WithLabelValues("open")))
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.dbConnections.WithLabelValues("in_use")))
	assert.Equal(t, 7.0, testutil.ToFloat64(collector.dbConnections.WithLabelValues("idle")))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordHTTPRequest("GET", "/test", 200, 100*time.Millisecond, 1024)
			collector.RecordSessionStep("ok", time.Millisecond)
			collector.RecordCacheHit("draft")
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/test", "2xx")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.sessionStepsTotal.WithLabelValues("ok")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.cacheHits.WithLabelValues("draft")))
}

func TestStatusCode(t *testing.T) {
	tests := map[int]string{200: "2xx", 301: "3xx", 404: "4xx", 500: "5xx", 100: "unknown"}
	for code, want := range tests {
		assert.Equal(t, want, statusCode(code), "code %d", code)
	}
}
