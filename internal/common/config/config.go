package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/saigo112/gas-camping-reservation/internal/extract"
	"github.com/saigo112/gas-camping-reservation/internal/model"
	"github.com/saigo112/gas-camping-reservation/internal/repository"
)

// Mode は本番/テストの環境モードです
// テストモードはシート・処理済みマーカー・送信先を安全側に切り替えます
type Mode string

const (
	ModeProd Mode = "prod"
	ModeTest Mode = "test"
)

// Config はプロセス起動時に一度だけ構築される設定値オブジェクトです
// 各コンポーネントは環境変数を直接参照せず、必ずこれを受け取ります
type Config struct {
	Mode Mode

	Store struct {
		Path              string // xlsxワークブックのパス
		SheetName         string // 予約シート
		SettingsSheetName string // メール設定シート
	}

	Search struct {
		Period      time.Duration // メール検索の遡り期間
		MaxMessages int
	}

	Batch struct {
		LockKey  string
		LockWait time.Duration // ロック取得の待ち上限。超えたらバッチごとスキップ
		LockTTL  time.Duration
	}

	Platforms []extract.Rule

	IMAP     repository.IMAPConfig
	Redis    repository.RedisConfig
	SMTP     repository.SMTPConfig
	Calendar repository.CalendarConfig

	Mailer struct {
		DryRun         bool
		LockCode       string // 南京錠の暗証番号（テンプレートの {南京錠} に展開）
		Signature      string
		ForceTo        string // テストモード時の強制送信先（誤爆防止）
		AttachmentsDir string
		NowOverride    string // リハーサル用の現在時刻上書き（RFC3339）
	}

	SFN struct {
		TaskToken string
	}
	EnableTracing bool
}

// Load は .env と環境変数から設定を読み込みます
func Load(taskToken string) (*Config, error) {
	// .env はあれば読む。なくてもエラーにしない
	_ = godotenv.Load()

	mode := Mode(getEnvOrDefault("APP_MODE", string(ModeProd)))
	if mode != ModeProd && mode != ModeTest {
		return nil, fmt.Errorf("APP_MODE は prod か test を指定してください: %s", mode)
	}

	cfg := &Config{Mode: mode}

	cfg.Store.Path = getEnvOrDefault("STORE_PATH", "reservations.xlsx")
	if mode == ModeTest {
		cfg.Store.SheetName = getEnvOrDefault("STORE_SHEET", "テスト")
	} else {
		cfg.Store.SheetName = getEnvOrDefault("STORE_SHEET", "楽天トラベル")
	}
	cfg.Store.SettingsSheetName = getEnvOrDefault("STORE_SETTINGS_SHEET", "メール設定")

	cfg.Search.Period = time.Duration(getEnvAsIntOrDefault("SEARCH_PERIOD_DAYS", 30)) * 24 * time.Hour
	if mode == ModeTest {
		cfg.Search.MaxMessages = getEnvAsIntOrDefault("SEARCH_MAX_MESSAGES", 200)
	} else {
		cfg.Search.MaxMessages = getEnvAsIntOrDefault("SEARCH_MAX_MESSAGES", 500)
	}

	cfg.Batch.LockKey = getEnvOrDefault("BATCH_LOCK_KEY", "camping:batch-lock")
	cfg.Batch.LockWait = 30 * time.Second
	cfg.Batch.LockTTL = 5 * time.Minute

	cfg.Platforms = []extract.Rule{
		{
			Platform:       model.PlatformRakuten,
			From:           getEnvOrDefault("RAKUTEN_FROM", "no-reply@camp.travel.rakuten.co.jp"),
			ConfirmSubject: "予約が確定しました",
			CancelSubject:  "予約がキャンセルされました",
		},
		{
			Platform:       model.PlatformNap,
			From:           getEnvOrDefault("NAP_FROM", "rsv@nap-camp.com"),
			ConfirmSubject: "ご予約ありがとうございます",
			// 要確認: 実際のキャンセルメール件名。部分一致なので誤検出の可能性あり
			CancelSubject: "キャンセル",
		},
	}

	cfg.IMAP = repository.IMAPConfig{
		Addr:     getEnvOrDefault("IMAP_ADDR", "imap.gmail.com:993"),
		Username: getEnvOrDefault("IMAP_USERNAME", ""),
		Password: getEnvOrDefault("IMAP_PASSWORD", ""),
		Folder:   getEnvOrDefault("IMAP_FOLDER", "INBOX"),
	}
	// IMAPキーワードはASCIIアトムのみ。モード別に分けて再抽出テストを安全にする
	if mode == ModeTest {
		cfg.IMAP.Keyword = getEnvOrDefault("IMAP_KEYWORD", "CampReservationTest")
	} else {
		cfg.IMAP.Keyword = getEnvOrDefault("IMAP_KEYWORD", "CampReservation")
	}

	cfg.Redis = repository.RedisConfig{
		Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		Password: getEnvOrDefault("REDIS_PASSWORD", ""),
		DB:       getEnvAsIntOrDefault("REDIS_DB", 0),
	}

	cfg.SMTP = repository.SMTPConfig{
		Host:     getEnvOrDefault("SMTP_HOST", "localhost"),
		Port:     getEnvAsIntOrDefault("SMTP_PORT", 587),
		Username: getEnvOrDefault("SMTP_USERNAME", ""),
		Password: getEnvOrDefault("SMTP_PASSWORD", ""),
		From:     getEnvOrDefault("SMTP_FROM", ""),
		ReplyTo:  getEnvOrDefault("SMTP_REPLY_TO", ""),
	}
	if mode == ModeTest {
		cfg.SMTP.FromName = getEnvOrDefault("SMTP_FROM_NAME", "BAMPO CAMP SITE (TEST)")
	} else {
		cfg.SMTP.FromName = getEnvOrDefault("SMTP_FROM_NAME", "BAMPO CAMP SITE")
	}

	cfg.Calendar = repository.CalendarConfig{
		BaseURL:    getEnvOrDefault("CALENDAR_BASE_URL", ""),
		CalendarID: getEnvOrDefault("CALENDAR_ID", ""),
		Token:      getEnvOrDefault("CALENDAR_TOKEN", ""),
	}

	// テストモードは既定でDRY_RUN。実送信の確認時だけ明示的に外す
	if mode == ModeTest {
		cfg.Mailer.DryRun = getEnvAsBoolOrDefault("MAIL_DRY_RUN", true)
		cfg.Mailer.ForceTo = getEnvOrDefault("MAIL_FORCE_TO", "")
	} else {
		cfg.Mailer.DryRun = getEnvAsBoolOrDefault("MAIL_DRY_RUN", false)
	}
	cfg.Mailer.LockCode = getEnvOrDefault("MAIL_LOCK_CODE", "2727")
	cfg.Mailer.Signature = getEnvOrDefault("MAIL_SIGNATURE", "")
	cfg.Mailer.AttachmentsDir = getEnvOrDefault("MAIL_ATTACHMENTS_DIR", "attachments")
	cfg.Mailer.NowOverride = getEnvOrDefault("MAIL_NOW_OVERRIDE", "")

	cfg.SFN.TaskToken = taskToken

	// 環境変数[CAMP_ENABLE_TRACING]を見てトレースを有効にする。対応しているTracingはAWS_XRAYのみ。
	// 環境変数[AWS_XRAY_SDK_DISABLED]がtrueの場合は必ずトレースを無効にする。
	enableKey := os.Getenv("CAMP_ENABLE_TRACING")
	if !sdkDisabled() && (strings.ToLower(enableKey) == "true" || enableKey == "1") {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "FALSE")
		cfg.EnableTracing = true
	} else {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "TRUE")
		cfg.EnableTracing = false
	}

	return cfg, nil
}

// Now はリマインダー用の現在時刻を返します（NOW_OVERRIDE対応）
func (c *Config) Now() time.Time {
	if c.Mailer.NowOverride != "" {
		if t, err := time.Parse(time.RFC3339, c.Mailer.NowOverride); err == nil {
			return t.In(model.JST)
		}
		log.Printf("MAIL_NOW_OVERRIDE の形式が不正のため無視します: %s", c.Mailer.NowOverride)
	}
	return time.Now().In(model.JST)
}

// Senders はメール検索に使う送信元アドレス一覧を返します
func (c *Config) Senders() []string {
	senders := make([]string, 0, len(c.Platforms))
	for _, p := range c.Platforms {
		senders = append(senders, p.From)
	}
	return senders
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Printf("Environment variable %s is not a number, using default value", key)
	}
	return defaultValue
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// Check if SDK is disabled
func sdkDisabled() bool {
	disableKey := os.Getenv("AWS_XRAY_SDK_DISABLED")
	return strings.ToLower(disableKey) == "true"
}
