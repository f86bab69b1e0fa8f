// Package main 是应用程序的入口点。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"persona-chat-go/internal/config"
	"persona-chat-go/internal/handler"
	"persona-chat-go/internal/repository"
	"persona-chat-go/internal/service"
	"persona-chat-go/pkg/database"
	"persona-chat-go/pkg/kafka"
	"persona-chat-go/pkg/llm"
	"persona-chat-go/pkg/log"
	"persona-chat-go/pkg/storage"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")
	if cfg.LLM.APIKey == "" {
		log.Warnf("未配置 llm.api_key，模型调用将返回认证错误")
	}

	ctx := context.Background()

	// 3. 初始化会话存储和 Redis
	conversationRepo, db, err := repository.Open(cfg.Database.Location)
	if err != nil {
		log.Fatal("打开会话存储失败", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Error("关闭会话存储失败", err)
		}
	}()
	log.Infow("会话存储已打开", "location", database.Redact(cfg.Database.Location))

	rdb, err := database.NewRedis(ctx, cfg.Database.Redis)
	if err != nil {
		log.Fatal("连接 Redis 失败", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	archive, err := storage.NewExportArchive(ctx, cfg.MinIO)
	if err != nil {
		log.Fatal("初始化导出归档失败", err)
	}
	publisher := kafka.NewPublisher(cfg.Kafka)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("关闭 Kafka 生产者失败", err)
		}
	}()

	// 4. 初始化 Repository
	var windowRepo repository.SessionRepository
	if rdb != nil {
		windowRepo = repository.NewSessionRepository(rdb, time.Duration(cfg.Database.Redis.WindowTTLH)*time.Hour)
	}

	// 5. 初始化 Service (依赖注入)
	llmClient := llm.NewClient(cfg.LLM)
	sessionService := service.NewSessionService(llmClient, windowRepo, cfg.LLM, cfg.Chat)
	conversationService := service.NewConversationService(conversationRepo, sessionService, publisher, archive)

	// 6. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(sessionService, conversationService)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
