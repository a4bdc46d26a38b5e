package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/squadz/internal/aead"
	"github.com/hitoshi/squadz/internal/metrics"
	"github.com/hitoshi/squadz/internal/middleware"
	"github.com/hitoshi/squadz/internal/model"
)

// SessionStoreInterface はルーターが必要とするセッションストアの全機能。
// session.Storeが実装する。
type SessionStoreInterface interface {
	SessionIssuer
	SessionCounter
	// Validate はAPIキーを検証し、有効ならセッションを返す。無効ならnil。
	Validate(apiKey string) *model.Session
}

// LocationStoreInterface はルーターが必要とする位置キャッシュの全機能。
// location.Cacheが実装する。
type LocationStoreInterface interface {
	LocationCacheInterface
	LocationRemover
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string

	// 状態ストア
	Registry  SquadRegistryInterface
	Sessions  SessionStoreInterface
	Locations LocationStoreInterface

	// セキュリティ
	AvatarGuard AvatarGuard

	// 暗号デモ
	Codec *aead.Codec

	// 可観測性
	Collector metrics.MetricsCollector
	Gatherer  prometheus.Gatherer

	// 設定値
	SessionTTL        time.Duration
	DashboardPassword string
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging
//
// 認証が必要なのは位置更新・脱退・解散のみで、それ以外は公開ルート。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェアを最上位に適用
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))

	squadHandler := NewSquadHandler(
		deps.Registry, deps.Sessions, deps.Locations,
		deps.AvatarGuard, deps.Collector, deps.SessionTTL,
	)
	locationHandler := NewLocationHandler(deps.Locations, deps.Registry, deps.Collector)
	cryptoHandler := NewCryptoHandler(deps.Codec)
	dashboardHandler := NewDashboardHandler(deps.Registry, deps.Sessions, deps.DashboardPassword)

	// --- 認証不要のルート ---

	// 管理ダッシュボード
	r.Get("/", dashboardHandler.Page)

	// ヘルスチェック
	r.Get("/health", handleHealth)

	// Prometheusメトリクス
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	r.Route("/api/v1", func(r chi.Router) {
		// スクワッド管理
		r.Route("/squads", func(r chi.Router) {
			r.Post("/", squadHandler.CreateSquad)
			r.Get("/", squadHandler.ListSquads)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", squadHandler.GetSquad)
				r.Post("/join", squadHandler.JoinSquad)
				r.Get("/locations", locationHandler.GetSquadLocations)
			})
		})

		// 暗号化デモ
		r.Route("/crypto", func(r chi.Router) {
			r.Get("/health", cryptoHandler.Health)
			r.Post("/echo", cryptoHandler.Echo)
			r.Post("/encrypt", cryptoHandler.Encrypt)
			r.Post("/decrypt", cryptoHandler.Decrypt)
		})

		// --- 認証が必要なルート ---
		// Bearer APIキーをセッションストアで検証する
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.Sessions))

			r.Post("/locations", locationHandler.UpdateLocation)
			r.Post("/squads/{id}/leave", squadHandler.LeaveSquad)
			r.Delete("/squads/{id}", squadHandler.DeleteSquad)
		})
	})

	return r
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status string `json:"status"`
}

// handleHealth はサービスの生存確認を返す。
// 外部依存を持たないため、プロセスが応答できれば常にokを返す。
// GET /health
func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
