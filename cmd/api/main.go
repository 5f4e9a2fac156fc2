// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"log"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/bookbinder/internal/book"
	"github.com/yourusername/bookbinder/internal/config"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// タスクパイプラインの配線（アセンブラ・変換・コンテンツストア・キュー）
	deps, err := setupTasks(cfg)
	if err != nil {
		log.Fatalf("Failed to set up task pipeline: %v", err)
	}
	deps.manager.StartWorkers()

	// ルーティングの設定
	setupRoutes(router, deps)

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "ok",
		"service": "bookbinder-api",
		"version": "0.1.0",
	})
}

// setupRoutes は API グループの配線を行います。
// 認証はホストアプリケーション側の責務のため、このサービスでは扱いません。
func setupRoutes(router *gin.Engine, deps *taskDeps) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	api := router.Group("/api")
	{
		api.POST("/books/render", book.RenderHandler(deps.manager))
		api.GET("/tasks/:id", tasksStatusRoute(deps))
		api.GET("/tasks/:id/download", tasksDownloadRoute(deps))
	}
}
