// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/squadz/internal/aead"
	"github.com/hitoshi/squadz/internal/config"
	"github.com/hitoshi/squadz/internal/handler"
	"github.com/hitoshi/squadz/internal/location"
	"github.com/hitoshi/squadz/internal/logger"
	"github.com/hitoshi/squadz/internal/metrics"
	"github.com/hitoshi/squadz/internal/security"
	"github.com/hitoshi/squadz/internal/session"
	"github.com/hitoshi/squadz/internal/squad"
	"github.com/hitoshi/squadz/internal/worker/sweep"
)

// dashboardPasswordLength は自動生成パスワードの長さ。
const dashboardPasswordLength = 12

// dashboardPasswordAlphabet は自動生成パスワードに使用する文字集合。
const dashboardPasswordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) *config.Config {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	return config.Load()
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg := Init(w)

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.ServerPort),
	)

	return runServe(cfg)
}

// runServe はAPIサーバーモードで起動する。
// 3つの状態ストアと全依存関係をワイヤリングし、HTTPサーバーと
// 掃き出しワーカーを起動する。状態はすべてプロセスメモリ内に保持され、
// 再起動で消える。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. セキュリティサービスの初期化
	sanitizer := security.NewNameSanitizer()
	avatarGuard := security.NewAvatarGuard()

	// 2. 状態ストアの初期化
	registry := squad.NewRegistry(sanitizer, squad.RegistryConfig{
		MaxSquadSize: cfg.MaxSquadSize,
	})
	sessions := session.NewStore()
	locations := location.NewCache(cfg.LocationTTL)

	// 3. 暗号デモのcodec初期化
	codec, err := aead.NewCodec()
	if err != nil {
		return fmt.Errorf("failed to initialize crypto codec: %w", err)
	}

	// 4. メトリクスの初期化
	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(promRegistry)

	// 5. ダッシュボードパスワードの決定
	dashboardPassword := cfg.DashboardPassword
	if dashboardPassword == "" {
		dashboardPassword, err = generateDashboardPassword()
		if err != nil {
			return fmt.Errorf("failed to generate dashboard password: %w", err)
		}
		slog.Info("dashboard password generated",
			slog.String("password", dashboardPassword),
		)
	}

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,

		Registry:  registry,
		Sessions:  sessions,
		Locations: locations,

		AvatarGuard: avatarGuard,
		Codec:       codec,

		Collector: collector,
		Gatherer:  promRegistry,

		SessionTTL:        cfg.SessionTTL,
		DashboardPassword: dashboardPassword,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         cfg.Host + ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 掃き出しワーカーとシャットダウンを束ねるコンテキスト
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 8. 掃き出しワーカーをバックグラウンドで起動
	sweeper := sweep.NewSweeper(sessions, locations, registry, collector, slog.Default())
	go sweeper.Start(ctx, cfg.SweepInterval)

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.Duration("session_ttl", cfg.SessionTTL),
			slog.Duration("location_ttl", cfg.LocationTTL),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// generateDashboardPassword はDASHBOARD_PASSWORD未設定時の
// 起動用パスワードを暗号学的乱数で生成する。
func generateDashboardPassword() (string, error) {
	password := make([]byte, dashboardPasswordLength)
	max := big.NewInt(int64(len(dashboardPasswordAlphabet)))
	for i := range password {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		password[i] = dashboardPasswordAlphabet[n.Int64()]
	}
	return string(password), nil
}
