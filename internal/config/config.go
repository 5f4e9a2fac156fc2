// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// ジョブ/キュー設定
	QueueRedisURL string // Asynq用Redis接続URL
	TaskRedisURL  string // タスク行保存用Redis接続URL（未設定時はQueueRedisURLを使用）

	// コンテンツストア設定
	StoreDir string // 成果物保存ディレクトリ

	// Wiki連携設定
	WikiBaseURL string // ホストWikiの正規オリジン（画像URLの絶対化と記事取得に使用）
	Stylesheets []string // 書籍へ取り込むスタイルシート名（カンマ区切り）

	// 変換設定
	RenderCommands   map[string]string // フォーマット別の変換コマンドテンプレート
	RenderExtensions map[string]string // フォーマット別の出力拡張子（未設定時はフォーマット名）
	MetadataPatterns map[string]string // メタデータキー別の抽出用正規表現
	MetadataDefaults map[string]string // メタデータのデフォルト値
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		// ジョブ/キュー設定
		QueueRedisURL: getEnv("QUEUE_REDIS_URL", "redis://127.0.0.1:6379/0"),
		TaskRedisURL:  getEnv("TASK_REDIS_URL", ""),

		// コンテンツストア設定
		StoreDir: getEnv("STORE_DIR", filepath.Join(os.TempDir(), "bookbinder-store")),

		// Wiki連携設定
		WikiBaseURL: getEnv("WIKI_BASE_URL", "http://localhost:8081"),
		Stylesheets: getEnvAsList("BOOK_STYLESHEETS", "book.css"),

		// 変換設定
		RenderCommands:   getEnvAsMap("RENDER_COMMANDS"),
		RenderExtensions: getEnvAsMap("RENDER_EXTENSIONS"),
		MetadataPatterns: getEnvAsMap("METADATA_PATTERNS"),
		MetadataDefaults: getEnvAsMap("METADATA_DEFAULTS"),
	}

	if config.TaskRedisURL == "" {
		config.TaskRedisURL = config.QueueRedisURL
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	// ローカル開発では変換コマンドの設定は任意
	// 本番環境では厳格にチェックする想定
	if c.GinMode == "release" {
		if c.QueueRedisURL == "" {
			return fmt.Errorf("QUEUE_REDIS_URL is required in release mode")
		}
		if len(c.RenderCommands) == 0 {
			return fmt.Errorf("RENDER_COMMANDS is required in release mode")
		}
		if c.WikiBaseURL == "" {
			return fmt.Errorf("WIKI_BASE_URL is required in release mode")
		}
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsList は環境変数をカンマ区切りのリストとして取得します。
func getEnvAsList(key string, defaultValue string) []string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	var list []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			list = append(list, item)
		}
	}
	return list
}

// getEnvAsMap は環境変数をJSONオブジェクトとして取得します。
// 未設定または解析不能な場合は空のマップを返します。
func getEnvAsMap(key string) map[string]string {
	result := map[string]string{}
	value := os.Getenv(key)
	if value == "" {
		return result
	}
	if err := json.Unmarshal([]byte(value), &result); err != nil {
		return map[string]string{}
	}
	return result
}
