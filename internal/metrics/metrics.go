// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はサービス層とミドルウェアから利用するメトリクス記録のインターフェース。
type Recorder interface {
	RecordLogin(success bool)
	RecordSignup(success bool)
	RecordLikeToggle(liked bool)
	RecordPlaceCreated()
	RecordHTTPStatus(statusCode int)
	RecordRequestDuration(method string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins          *prometheus.CounterVec
	signups         *prometheus.CounterVec
	likeToggles     *prometheus.CounterVec
	placesCreated   prometheus.Counter
	httpStatus      *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placeshare_login_total",
			Help: "ログイン試行の合計数（結果別）",
		}, []string{"result"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placeshare_signup_total",
			Help: "サインアップ試行の合計数（結果別）",
		}, []string{"result"}),
		likeToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placeshare_like_toggle_total",
			Help: "いいねトグルの合計数（いいね/取り消し別）",
		}, []string{"action"}),
		placesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "placeshare_places_created_total",
			Help: "作成された場所の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placeshare_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "placeshare_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		c.logins,
		c.signups,
		c.likeToggles,
		c.placesCreated,
		c.httpStatus,
		c.requestDuration,
	)

	return c
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordLogin はログイン試行を記録する。
func (c *Collector) RecordLogin(success bool) {
	c.logins.WithLabelValues(resultLabel(success)).Inc()
}

// RecordSignup はサインアップ試行を記録する。
func (c *Collector) RecordSignup(success bool) {
	c.signups.WithLabelValues(resultLabel(success)).Inc()
}

// RecordLikeToggle はいいねトグルの結果を記録する。
func (c *Collector) RecordLikeToggle(liked bool) {
	action := "unlike"
	if liked {
		action = "like"
	}
	c.likeToggles.WithLabelValues(action).Inc()
}

// RecordPlaceCreated は場所の作成を記録する。
func (c *Collector) RecordPlaceCreated() {
	c.placesCreated.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestDuration(method string, duration time.Duration) {
	c.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// Nop は何も記録しないRecorder。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordLogin(bool)                           {}
func (Nop) RecordSignup(bool)                          {}
func (Nop) RecordLikeToggle(bool)                      {}
func (Nop) RecordPlaceCreated()                        {}
func (Nop) RecordHTTPStatus(int)                       {}
func (Nop) RecordRequestDuration(string, time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
