package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"go.uber.org/zap"

	"github.com/saigo112/gas-camping-reservation/internal/common/config"
	"github.com/saigo112/gas-camping-reservation/internal/common/logger"
	"github.com/saigo112/gas-camping-reservation/internal/common/utils"
	"github.com/saigo112/gas-camping-reservation/internal/repository"
	"github.com/saigo112/gas-camping-reservation/internal/service/batch"
)

const (
	projectName = "camping-reservation-reminder"
)

func main() {
	// コマンドライン引数のパース
	timeout := flag.Duration("timeout", 5*time.Minute, "バッチ処理のタイムアウト時間")
	flag.Parse()

	// リマインダーは定期実行のみでSFNコールバックを使わない
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load config: %v\nStack trace:\n%s", err, debug.Stack())
	}

	zlog, err := logger.New(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), projectName)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	// X-Ray設定
	if cfg.EnableTracing {
		if err := xray.Configure(xray.Config{
			DaemonAddr:     "127.0.0.1:2000", // X-Rayデーモンのアドレス
			ServiceVersion: "1.0.0",
		}); err != nil {
			zlog.Warn("Failed to configure X-Ray", zap.Error(err))
			// X-Ray設定失敗時はデフォルトの設定を使用
			if configErr := xray.Configure(xray.Config{}); configErr != nil {
				log.Fatalf("Failed to configure default X-Ray settings: %v", configErr)
			}
		}
		os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
	}

	// ストアの初期化
	wb, err := repository.OpenWorkbook(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open workbook: %v", err)
	}
	defer wb.Close()
	sheet, err := wb.Sheet(cfg.Store.SheetName)
	if err != nil {
		log.Fatalf("Failed to open sheet: %v", err)
	}
	settings, err := wb.Sheet(cfg.Store.SettingsSheetName)
	if err != nil {
		log.Fatalf("Failed to open settings sheet: %v", err)
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	defer redisClient.Close()

	service := batch.NewReminderBatchService(
		cfg, sheet, settings,
		repository.NewSMTPSender(cfg.SMTP),
		repository.NewRedisLock(redisClient, cfg.Batch.LockKey, cfg.Batch.LockTTL),
		zlog,
	)

	// コンテキストの作成
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// X-Rayセグメントの作成
	if cfg.EnableTracing {
		var seg *xray.Segment
		ctx, seg = xray.BeginSegment(ctx, projectName)
		defer seg.Close(nil)

		if err := seg.AddMetadata("timeout", timeout.String()); err != nil {
			zlog.Warn("Failed to add timeout metadata", zap.Error(err))
		}
	}

	// シグナルハンドリングの設定
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- utils.RunWithTimeout(ctx, *timeout, service.Run)
	}()

	// シグナルまたはエラーの待機
	select {
	case sig := <-sigChan:
		zlog.Warn("Received signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errChan:
		if err != nil {
			zlog.Error("Batch process failed", zap.Error(err))
			os.Exit(1)
		}
		zlog.Info("Batch process completed successfully")
	}
}
