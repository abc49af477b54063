package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Upstream API
	APIBaseURL  string
	HTTPTimeout time.Duration

	// Session
	StateFile string

	// Console
	ServerPort      string
	LoginRatePerMin int

	// Advisory
	AdvisoryFeedURL string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（無ければ無視）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.APIBaseURL = os.Getenv("PANIC_API_URL")
	if cfg.APIBaseURL == "" {
		missing = append(missing, "PANIC_API_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", 10*time.Second)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.LoginRatePerMin = getEnvInt("LOGIN_RATE_LIMIT", 10)
	cfg.AdvisoryFeedURL = getEnvString("ADVISORY_FEED_URL", "")

	stateFile := os.Getenv("STATE_FILE")
	if stateFile == "" {
		defaultPath, err := DefaultStateFile()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve default state file (set STATE_FILE): %w", err)
		}
		stateFile = defaultPath
	}
	cfg.StateFile = stateFile

	return cfg, nil
}

// DefaultStateFile はセッション状態ファイルのデフォルトパスを返す。
// ユーザー設定ディレクトリ配下のbatsignal/state.jsonを使用する。
func DefaultStateFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "batsignal", "state.json"), nil
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
