// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector は認証ゲートウェイのPrometheusメトリクスを収集する。
// auth.MetricsRecorderおよびmiddlewareのメトリクスインターフェースを実装する。
type Collector struct {
	registrations     prometheus.Counter
	loginSuccess      prometheus.Counter
	loginFailure      prometheus.Counter
	federatedLogins   *prometheus.CounterVec
	providerConflicts *prometheus.CounterVec
	tokensRejected    prometheus.Counter
	httpRequests      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fittrack_registrations_total",
			Help: "ローカル登録成功の合計数",
		}),
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fittrack_login_success_total",
			Help: "ローカルログイン成功の合計数",
		}),
		loginFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fittrack_login_failure_total",
			Help: "ローカルログイン失敗の合計数",
		}),
		federatedLogins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fittrack_federated_login_total",
			Help: "プロバイダー別の外部IdPログイン成功数",
		}, []string{"provider"}),
		providerConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fittrack_provider_conflict_total",
			Help: "登録元プロバイダー別のプロバイダー競合数",
		}, []string{"provider"}),
		tokensRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fittrack_token_rejected_total",
			Help: "検証に失敗したアクセストークンの合計数",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fittrack_http_requests_total",
			Help: "メソッド・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "status_code"}),
	}

	reg.MustRegister(
		c.registrations,
		c.loginSuccess,
		c.loginFailure,
		c.federatedLogins,
		c.providerConflicts,
		c.tokensRejected,
		c.httpRequests,
	)

	return c
}

// RecordRegistration はローカル登録成功を記録する。
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordLoginSuccess はローカルログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はローカルログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFailure.Inc()
}

// RecordFederatedLogin は外部IdPログイン成功を記録する。
func (c *Collector) RecordFederatedLogin(provider string) {
	c.federatedLogins.WithLabelValues(provider).Inc()
}

// RecordProviderConflict はプロバイダー競合を記録する。
func (c *Collector) RecordProviderConflict(provider string) {
	c.providerConflicts.WithLabelValues(provider).Inc()
}

// RecordTokenRejected はトークン検証失敗を記録する。
func (c *Collector) RecordTokenRejected() {
	c.tokensRejected.Inc()
}

// RecordHTTPRequest はHTTPリクエストの完了を記録する。
// ラベルはメソッドとステータスコードのみ。
func (c *Collector) RecordHTTPRequest(method string, statusCode int) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
