// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・在庫エンジン・通知ワーカーから利用する。
type MetricsCollector interface {
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordLoginLocked()
	RecordStockDeduction(quantity int)
	RecordStockRestoration(quantity int)
	RecordNotificationRun(sent int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess     prometheus.Counter
	loginFail        prometheus.Counter
	loginLocked      prometheus.Counter
	stockDeducted    prometheus.Counter
	stockRestored    prometheus.Counter
	notificationRuns prometheus.Counter
	notificationSent prometheus.Counter
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoutinv_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoutinv_login_fail_total",
			Help: "ログイン失敗の合計数",
		}),
		loginLocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoutinv_login_locked_total",
			Help: "ロックアウト中に拒否したログイン試行の合計数",
		}),
		stockDeducted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoutinv_stock_deducted_total",
			Help: "在庫から減算した数量の合計",
		}),
		stockRestored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoutinv_stock_restored_total",
			Help: "在庫へ復元した数量の合計",
		}),
		notificationRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoutinv_notification_runs_total",
			Help: "通知サイクルの実行回数",
		}),
		notificationSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoutinv_notification_sent_total",
			Help: "送信したリマインド通知の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scoutinv_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.loginLocked,
		c.stockDeducted,
		c.stockRestored,
		c.notificationRuns,
		c.notificationSent,
		c.httpStatus,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFail.Inc()
}

// RecordLoginLocked はロックアウト中の試行拒否を記録する。
func (c *Collector) RecordLoginLocked() {
	c.loginLocked.Inc()
}

// RecordStockDeduction は在庫の減算数量を記録する。
func (c *Collector) RecordStockDeduction(quantity int) {
	c.stockDeducted.Add(float64(quantity))
}

// RecordStockRestoration は在庫の復元数量を記録する。
func (c *Collector) RecordStockRestoration(quantity int) {
	c.stockRestored.Add(float64(quantity))
}

// RecordNotificationRun は通知サイクルの実行と送信数を記録する。
func (c *Collector) RecordNotificationRun(sent int) {
	c.notificationRuns.Inc()
	c.notificationSent.Add(float64(sent))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
