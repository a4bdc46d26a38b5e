// Package sweep は期限切れセッションと古い位置情報の定期掃き出しを提供する。
// 各ストアは読み取り時にも遅延破棄を行うが、一度も参照されない
// エントリはこの掃き出しでしか回収されない。
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/squadz/internal/metrics"
)

// SessionSweeper は期限切れセッションの一括破棄インターフェース。
// session.Storeが実装する。
type SessionSweeper interface {
	// CleanupExpired は期限切れセッションを破棄し、破棄数を返す。
	CleanupExpired() int
	// Count は保持中のセッション数を返す。
	Count() int
}

// LocationSweeper は古い位置エントリの一括破棄インターフェース。
// location.Cacheが実装する。
type LocationSweeper interface {
	// CleanupStale はTTLの2倍を超えた位置エントリを破棄し、破棄数を返す。
	CleanupStale() int
	// Count は保持中の位置エントリ数を返す。
	Count() int
}

// SquadCounter は存続中のスクワッド数を返すインターフェース。
type SquadCounter interface {
	Count() int
}

// Sweeper は2つの揮発ストアの掃き出しを定期実行する。
type Sweeper struct {
	sessions  SessionSweeper
	locations LocationSweeper
	squads    SquadCounter
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewSweeper はSweeperの新しいインスタンスを生成する。
func NewSweeper(
	sessions SessionSweeper,
	locations LocationSweeper,
	squads SquadCounter,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		sessions:  sessions,
		locations: locations,
		squads:    squads,
		collector: collector,
		logger:    logger,
	}
}

// Start は指定間隔のティッカーで掃き出しを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("掃き出しワーカーを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("掃き出しワーカーを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は掃き出しを1回実行し、破棄数をログとメトリクスに記録する。
func (s *Sweeper) RunOnce(ctx context.Context) {
	start := time.Now()

	expiredSessions := s.sessions.CleanupExpired()
	staleLocations := s.locations.CleanupStale()

	s.collector.RecordSweep(expiredSessions, staleLocations)
	s.collector.SetLiveCounts(s.squads.Count(), s.sessions.Count(), s.locations.Count())

	duration := time.Since(start)
	s.logger.Info("掃き出しサイクルが完了しました",
		slog.Int("expired_sessions", expiredSessions),
		slog.Int("stale_locations", staleLocations),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
}
