// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやスイープワーカーから利用する。
type MetricsCollector interface {
	RecordSquadCreated()
	RecordSquadJoined()
	RecordSquadDeleted(reason string)
	RecordSessionIssued()
	RecordLocationUpdate()
	RecordHTTPStatus(statusCode int)
	RecordSweep(expiredSessions, staleLocations int)
	SetLiveCounts(squads, sessions, locations int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	squadsCreated   prometheus.Counter
	squadsJoined    prometheus.Counter
	squadsDeleted   *prometheus.CounterVec
	sessionsIssued  prometheus.Counter
	locationUpdates prometheus.Counter
	httpStatus      *prometheus.CounterVec
	sessionsSwept   prometheus.Counter
	locationsSwept  prometheus.Counter
	liveSquads      prometheus.Gauge
	liveSessions    prometheus.Gauge
	liveLocations   prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		squadsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "squadz_squads_created_total",
			Help: "作成されたスクワッドの合計数",
		}),
		squadsJoined: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "squadz_squads_joined_total",
			Help: "スクワッドへの参加の合計数",
		}),
		squadsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squadz_squads_deleted_total",
			Help: "解散されたスクワッドの合計数（理由別）",
		}, []string{"reason"}),
		sessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "squadz_sessions_issued_total",
			Help: "発行されたセッションの合計数",
		}),
		locationUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "squadz_location_updates_total",
			Help: "位置情報更新の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squadz_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "squadz_sessions_swept_total",
			Help: "定期掃き出しで破棄された期限切れセッションの合計数",
		}),
		locationsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "squadz_locations_swept_total",
			Help: "定期掃き出しで破棄された古い位置エントリの合計数",
		}),
		liveSquads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "squadz_live_squads",
			Help: "存続中のスクワッド数",
		}),
		liveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "squadz_live_sessions",
			Help: "保持中のセッション数",
		}),
		liveLocations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "squadz_live_locations",
			Help: "保持中の位置エントリ数",
		}),
	}

	reg.MustRegister(
		c.squadsCreated,
		c.squadsJoined,
		c.squadsDeleted,
		c.sessionsIssued,
		c.locationUpdates,
		c.httpStatus,
		c.sessionsSwept,
		c.locationsSwept,
		c.liveSquads,
		c.liveSessions,
		c.liveLocations,
	)

	return c
}

// RecordSquadCreated はスクワッド作成を記録する。
func (c *Collector) RecordSquadCreated() {
	c.squadsCreated.Inc()
}

// RecordSquadJoined はスクワッド参加を記録する。
func (c *Collector) RecordSquadJoined() {
	c.squadsJoined.Inc()
}

// RecordSquadDeleted はスクワッド解散を理由付きで記録する。
// reasonは "leader_left" または "deleted"。
func (c *Collector) RecordSquadDeleted(reason string) {
	c.squadsDeleted.WithLabelValues(reason).Inc()
}

// RecordSessionIssued はセッション発行を記録する。
func (c *Collector) RecordSessionIssued() {
	c.sessionsIssued.Inc()
}

// RecordLocationUpdate は位置情報更新を記録する。
func (c *Collector) RecordLocationUpdate() {
	c.locationUpdates.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSweep は定期掃き出しの破棄数を記録する。
func (c *Collector) RecordSweep(expiredSessions, staleLocations int) {
	c.sessionsSwept.Add(float64(expiredSessions))
	c.locationsSwept.Add(float64(staleLocations))
}

// SetLiveCounts は各ストアの現在の保持数をゲージに反映する。
func (c *Collector) SetLiveCounts(squads, sessions, locations int) {
	c.liveSquads.Set(float64(squads))
	c.liveSessions.Set(float64(sessions))
	c.liveLocations.Set(float64(locations))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
