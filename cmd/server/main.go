package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"

	"storia/internal/global"
	"storia/internal/logger"
	"storia/internal/worker"
)

// initLogger khởi tạo và cấu hình logger cho toàn bộ ứng dụng
func initLogger() {
	// Logger tự động đọc environment variables để cấu hình
	if err := logger.Init(nil); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	log := logger.GetAppLogger()
	log.Info("Logger system initialized successfully")
}

// main_thread khởi tạo và chạy Fiber server
func main_thread() {
	app := InitFiberApp()

	cfg := global.ServerConfig
	address := cfg.Address

	log := logger.GetAppLogger()
	log.WithFields(map[string]interface{}{
		"address":  address,
		"protocol": "HTTP",
	}).Info("Starting Fiber server...")

	listenConfig := fiber.ListenConfig{}
	if err := app.Listen(address, listenConfig); err != nil {
		log.Fatalf("Error in Fiber Listen: %v", err)
	}
}

// Hàm main
func main() {
	// Khởi tạo logger
	initLogger()

	// Khởi tạo các biến toàn cục
	InitGlobal()

	// Khởi tạo registry
	InitRegistry()

	log := logger.GetAppLogger()

	// Khởi tạo và chạy Staging Cleanup Worker (background worker dọn upload
	// staging quá hạn)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweepInterval := time.Duration(global.ServerConfig.StagingSweepSeconds) * time.Second
	cleanupWorker := worker.NewStagingCleanupWorker(global.Staging, sweepInterval)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(map[string]interface{}{
					"panic": r,
				}).Error("🧹 [STAGING_CLEANUP] Worker goroutine panic")
			}
		}()

		log.Info("🧹 [STAGING_CLEANUP] Starting Staging Cleanup Worker...")
		cleanupWorker.Start(ctx)
		log.Warn("🧹 [STAGING_CLEANUP] Worker đã dừng (có thể do context cancelled)")
	}()

	// Chạy Fiber server trên main thread
	main_thread()
}
