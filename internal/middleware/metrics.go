package middleware

import (
	"net/http"
	"time"

	"github.com/hitoshi/placeshare/internal/metrics"
)

// NewMetricsMiddleware はステータスコードと処理時間をRecorderに記録するミドルウェアを返す。
func NewMetricsMiddleware(recorder metrics.Recorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			recorder.RecordHTTPStatus(rec.statusCode)
			recorder.RecordRequestDuration(r.Method, time.Since(start))
		})
	}
}
