// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	Host       string
	ServerPort string

	// Stores
	LocationTTL  time.Duration // 位置情報のstale判定閾値
	SessionTTL   time.Duration // セッションの絶対有効期間
	MaxSquadSize int           // スクワッドの最大メンバー数

	// Worker
	SweepInterval time.Duration // 期限切れセッション/古い位置の掃き出し間隔

	// Dashboard
	DashboardPassword string // 未設定の場合は起動時に自動生成される

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// すべてのキーにデフォルト値があり、必須の環境変数はない。
func Load() *Config {
	return &Config{
		Host:              getEnvString("HOST", "0.0.0.0"),
		ServerPort:        getEnvString("SERVER_PORT", "8080"),
		LocationTTL:       time.Duration(getEnvInt("LOCATION_TTL_SECS", 300)) * time.Second,
		SessionTTL:        time.Duration(getEnvInt("SESSION_TTL_SECS", 3600)) * time.Second,
		MaxSquadSize:      getEnvInt("MAX_SQUAD_SIZE", 50),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", time.Minute),
		DashboardPassword: getEnvString("DASHBOARD_PASSWORD", ""),
		CORSAllowedOrigin: getEnvString("CORS_ALLOWED_ORIGIN", "*"),
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
