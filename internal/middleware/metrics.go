package middleware

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/render"

	"github.com/bryanwahyu/palmview/internal/application/analysis"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	AnalysesTotal      uint64
	AnalysesRunning    uint64
	AnalysesSucceeded  uint64
	AnalysesFailed     uint64
	AnalysesQuota      uint64
	AnalysesDiscarded  uint64
	StartTime          time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

// IncrementRequests increments total request counter
func IncrementRequests() {
	atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
}

// IncrementInProgress increments in-progress request counter
func IncrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, 1)
}

// DecrementInProgress decrements in-progress request counter
func DecrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0))
}

func IncrementSuccess() {
	atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
}

func IncrementFailed() {
	atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
}

// AnalysisRecorder feeds controller lifecycle events into the global counters.
type AnalysisRecorder struct{}

func (AnalysisRecorder) Started() {
	atomic.AddUint64(&globalMetrics.AnalysesTotal, 1)
	atomic.AddUint64(&globalMetrics.AnalysesRunning, 1)
}

func (AnalysisRecorder) Settled(o analysis.Outcome) {
	atomic.AddUint64(&globalMetrics.AnalysesRunning, ^uint64(0))
	switch o {
	case analysis.OutcomeSuccess:
		atomic.AddUint64(&globalMetrics.AnalysesSucceeded, 1)
	case analysis.OutcomeQuota:
		atomic.AddUint64(&globalMetrics.AnalysesQuota, 1)
		atomic.AddUint64(&globalMetrics.AnalysesFailed, 1)
	case analysis.OutcomeStale:
		atomic.AddUint64(&globalMetrics.AnalysesDiscarded, 1)
	default:
		atomic.AddUint64(&globalMetrics.AnalysesFailed, 1)
	}
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":          atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress":    atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":        atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":         atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"analyses_total":          atomic.LoadUint64(&globalMetrics.AnalysesTotal),
		"analyses_running":        atomic.LoadUint64(&globalMetrics.AnalysesRunning),
		"analyses_succeeded":      atomic.LoadUint64(&globalMetrics.AnalysesSucceeded),
		"analyses_failed":         atomic.LoadUint64(&globalMetrics.AnalysesFailed),
		"analyses_quota_exceeded": atomic.LoadUint64(&globalMetrics.AnalysesQuota),
		"analyses_discarded":      atomic.LoadUint64(&globalMetrics.AnalysesDiscarded),
		"uptime_seconds":          time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, GetMetrics())
}
