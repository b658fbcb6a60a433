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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"
	"go.uber.org/zap"

	"github.com/saigo112/gas-camping-reservation/internal/common/config"
	"github.com/saigo112/gas-camping-reservation/internal/common/logger"
	"github.com/saigo112/gas-camping-reservation/internal/common/utils"
	"github.com/saigo112/gas-camping-reservation/internal/repository"
	"github.com/saigo112/gas-camping-reservation/internal/service/batch"
)

const (
	projectName = "camping-reservation-ingest"
)

func main() {
	// コマンドライン引数のパース
	timeout := flag.Duration("timeout", 5*time.Minute, "バッチ処理のタイムアウト時間")
	flag.Parse()

	// 最後の引数として渡されたタスクトークンを取得
	// ENV=LOCALの場合はタスクトークンを取得しない
	taskToken := "DUMMY_TASK_TOKEN"
	if os.Getenv("ENV") != "LOCAL" {
		taskToken = flag.Arg(flag.NArg() - 1)
		if taskToken == "" {
			log.Fatalf("Task token is required")
		}
	}

	// 設定の読み込み
	cfg, err := config.Load(taskToken)
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

	// Step Functionsクライアントの初期化
	var sfnClient *sfn.Client
	if os.Getenv("ENV") != "LOCAL" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v\nStack trace:\n%s", err, debug.Stack())
		}
		sfnClient = sfn.NewFromConfig(awsCfg)
	}

	// ストアの初期化。ワークブックやシートが無いのは設定ミスなので即終了する
	wb, err := repository.OpenWorkbook(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open workbook: %v", err)
	}
	defer wb.Close()
	sheet, err := wb.Sheet(cfg.Store.SheetName)
	if err != nil {
		log.Fatalf("Failed to open sheet: %v", err)
	}

	// メールボックスへの接続
	mailbox, err := repository.NewIMAPMailbox(cfg.IMAP)
	if err != nil {
		log.Fatalf("Failed to connect mailbox: %v", err)
	}
	defer mailbox.Close()

	// バッチロック（取り込みとカレンダー同期で同じキーを直列に取り直す）
	redisClient := repository.NewRedisClient(cfg.Redis)
	defer redisClient.Close()

	calendar := repository.NewHTTPCalendar(cfg.Calendar)

	ingest := batch.NewIngestBatchService(
		cfg, sheet, mailbox,
		repository.NewRedisLock(redisClient, cfg.Batch.LockKey, cfg.Batch.LockTTL),
		zlog,
	)
	calendarSync := batch.NewCalendarSyncService(
		cfg, sheet, calendar,
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

		// セグメントにメタデータを追加
		if err := seg.AddMetadata("task_token", taskToken); err != nil {
			zlog.Warn("Failed to add task_token metadata", zap.Error(err))
		}
		if err := seg.AddMetadata("timeout", timeout.String()); err != nil {
			zlog.Warn("Failed to add timeout metadata", zap.Error(err))
		}
	}

	// シグナルハンドリングの設定
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// メール取り込み → カレンダー同期の順に実行する
	run := func(ctx context.Context) error {
		if err := ingest.Run(ctx); err != nil {
			return err
		}
		return calendarSync.Run(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- utils.RunWithTimeout(ctx, *timeout, run)
	}()

	// シグナルまたはエラーの待機
	select {
	case sig := <-sigChan:
		zlog.Warn("Received signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errChan:
		if err != nil {
			zlog.Error("Batch process failed", zap.Error(err))

			// ローカル環境以外の場合のみStep Functionsのエラー通知を行う
			if os.Getenv("ENV") != "LOCAL" && sfnClient != nil {
				input := &sfn.SendTaskFailureInput{
					TaskToken: aws.String(taskToken),
					Error:     aws.String("Batch process failed"),
				}
				if _, err := sfnClient.SendTaskFailure(ctx, input); err != nil {
					zlog.Error("Failed to send task failure", zap.Error(err))
				}
			}

			os.Exit(1)
		}

		if os.Getenv("ENV") != "LOCAL" && sfnClient != nil {
			input := &sfn.SendTaskSuccessInput{
				TaskToken: aws.String(taskToken),
				Output:    aws.String(`{"status":"SUCCEEDED"}`),
			}
			if _, err := sfnClient.SendTaskSuccess(ctx, input); err != nil {
				zlog.Error("Failed to send task success", zap.Error(err))
			}
		}
		zlog.Info("Batch process completed successfully")
	}
}
