package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"go.uber.org/zap"

	"github.com/saigo112/gas-camping-reservation/internal/common/config"
	"github.com/saigo112/gas-camping-reservation/internal/common/utils"
	"github.com/saigo112/gas-camping-reservation/internal/model"
	"github.com/saigo112/gas-camping-reservation/internal/repository"
)

// テンプレートキー。メール設定シートの1列目で指定します
const (
	templateNextDay   = "reserve_next_day" // 受信翌日: 南京錠番号のお知らせ
	templateDayBefore = "checkin_prev_day" // 宿泊日前日: 注意事項リマインド
	templateSignature = "common_signature" // 署名の上書き（任意）
)

// mailTemplate はメール設定シート1行分のテンプレートです
type mailTemplate struct {
	Subject     string
	Body        string
	Attachments []string // 添付ファイル名（添付ディレクトリからの相対）
}

// reminderStats は1回の実行の処理統計です
type reminderStats struct {
	TotalRows        int
	NoEmail          int
	SkippedNotActive int
	NextDaySent      int
	NextDayAlready   int
	DayBeforeSent    int
	DayBeforeAlready int
	SendFailed       int
}

// ReminderBatchService はリマインダーメールの送信バッチを担当します
// 送信対象はステータス「予約中」の行のみ。各行のフラグ列で二重送信を防ぎます
type ReminderBatchService struct {
	cfg      *config.Config
	store    repository.SheetStore
	settings repository.SheetStore
	sender   repository.MailSender
	lock     repository.BatchLock
	logger   *zap.Logger
}

// NewReminderBatchService は新しいReminderBatchServiceを作成します
func NewReminderBatchService(
	cfg *config.Config,
	store repository.SheetStore,
	settings repository.SheetStore,
	sender repository.MailSender,
	lock repository.BatchLock,
	logger *zap.Logger,
) *ReminderBatchService {
	return &ReminderBatchService{
		cfg:      cfg,
		store:    store,
		settings: settings,
		sender:   sender,
		lock:     lock,
		logger:   logger,
	}
}

// Run はリマインダーバッチを実行します
func (s *ReminderBatchService) Run(ctx context.Context) error {
	ctx, seg := xray.BeginSubsegment(ctx, "ReminderBatchService.Run")
	defer seg.Close(nil)

	locked, err := s.lock.TryLock(ctx, s.cfg.Batch.LockWait)
	if err != nil {
		return utils.GetStackWithError(fmt.Errorf("failed to acquire batch lock: %w", err))
	}
	if !locked {
		s.logger.Warn("他のプロセスが実行中のためスキップしました")
		return nil
	}
	defer func() {
		if err := s.lock.Unlock(context.Background()); err != nil {
			s.logger.Warn("ロック解放に失敗しました", zap.Error(err))
		}
	}()

	templates, err := s.loadTemplates(ctx)
	if err != nil {
		return utils.GetStackWithError(err)
	}

	signature := s.cfg.Mailer.Signature
	if t, ok := templates[templateSignature]; ok && t.Body != "" {
		signature = t.Body
	}

	// フラグ列が無い古いシートでも動くように列を整備する
	if _, err := s.store.EnsureColumns(ctx, model.SheetColumns); err != nil {
		return utils.GetStackWithError(fmt.Errorf("failed to ensure sheet columns: %w", err))
	}
	table, err := s.store.ReadAll(ctx)
	if err != nil {
		return utils.GetStackWithError(fmt.Errorf("failed to read sheet: %w", err))
	}

	now := s.cfg.Now()
	today := jstMidnight(now)
	yesterday := today.AddDate(0, 0, -1)

	stats := reminderStats{TotalRows: len(table.Rows)}

	for i, row := range table.Rows {
		rowNum := i + 2

		if model.Status(table.Cell(row, model.ColStatus)) != model.StatusBooked {
			stats.SkippedNotActive++
			continue
		}
		email := strings.TrimSpace(table.Cell(row, model.ColEmail))
		if email == "" {
			stats.NoEmail++
			continue
		}
		to := email
		if s.cfg.Mode == config.ModeTest && s.cfg.Mailer.ForceTo != "" {
			// テストモードでは宛先を必ず差し替える（誤爆防止）
			to = s.cfg.Mailer.ForceTo
		}

		// ① 受信翌日: 予約日時が昨日の行
		received := model.ParseSheetTime(table.Cell(row, model.ColReceivedAt))
		if !received.IsZero() && jstMidnight(received).Equal(yesterday) {
			switch {
			case table.Cell(row, model.ColNextDaySent) == model.SentFlag:
				stats.NextDayAlready++
			default:
				if s.sendReminder(ctx, to, templates, templateNextDay, table, row, signature, rowNum, model.ColNextDaySent) {
					stats.NextDaySent++
				} else {
					stats.SendFailed++
				}
			}
		}

		// ② 宿泊日前日: チェックイン日時の前日が今日の行
		checkIn := model.ParseSheetTime(table.Cell(row, model.ColCheckIn))
		if !checkIn.IsZero() && jstMidnight(checkIn).AddDate(0, 0, -1).Equal(today) {
			switch {
			case table.Cell(row, model.ColDayBeforeSent) == model.SentFlag:
				stats.DayBeforeAlready++
			default:
				if s.sendReminder(ctx, to, templates, templateDayBefore, table, row, signature, rowNum, model.ColDayBeforeSent) {
					stats.DayBeforeSent++
				} else {
					stats.SendFailed++
				}
			}
		}
	}

	s.logger.Info("リマインダーバッチが完了しました",
		zap.String("mode", string(s.cfg.Mode)),
		zap.Bool("dry_run", s.cfg.Mailer.DryRun),
		zap.Int("total_rows", stats.TotalRows),
		zap.Int("no_email", stats.NoEmail),
		zap.Int("skipped_not_active", stats.SkippedNotActive),
		zap.Int("next_day_sent", stats.NextDaySent),
		zap.Int("next_day_already", stats.NextDayAlready),
		zap.Int("day_before_sent", stats.DayBeforeSent),
		zap.Int("day_before_already", stats.DayBeforeAlready),
		zap.Int("send_failed", stats.SendFailed),
	)
	return nil
}

// loadTemplates はメール設定シートを読み込みます
// 列は キー / 件名 / 本文 / 添付（カンマ区切り）の固定並びです
func (s *ReminderBatchService) loadTemplates(ctx context.Context) (map[string]mailTemplate, error) {
	table, err := s.settings.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings sheet: %w", err)
	}
	templates := make(map[string]mailTemplate)
	for _, row := range table.Rows {
		key := strings.TrimSpace(columnAt(row, 0))
		if key == "" {
			continue
		}
		t := mailTemplate{
			Subject: strings.TrimSpace(columnAt(row, 1)),
			Body:    strings.TrimSpace(columnAt(row, 2)),
		}
		if raw := strings.TrimSpace(columnAt(row, 3)); raw != "" {
			for _, name := range strings.Split(raw, ",") {
				if name = strings.TrimSpace(name); name != "" {
					t.Attachments = append(t.Attachments, name)
				}
			}
		}
		templates[key] = t
	}
	return templates, nil
}

// sendReminder はテンプレートを展開して1通送り、成功時にフラグ列を更新します
func (s *ReminderBatchService) sendReminder(
	ctx context.Context,
	to string,
	templates map[string]mailTemplate,
	templateKey string,
	table *repository.Table,
	row []string,
	signature string,
	rowNum int,
	flagColumn string,
) bool {
	t, ok := templates[templateKey]
	if !ok || t.Subject == "" || t.Body == "" {
		s.logger.Error("テンプレートが不足しています", zap.String("template", templateKey))
		return false
	}

	subject := s.replaceTags(t.Subject, table, row)
	body := s.replaceTags(t.Body, table, row)
	if signature != "" {
		body += "\n\n" + strings.Repeat("-", 50) + "\n" + signature
	}

	var attachments []string
	for _, name := range t.Attachments {
		path := filepath.Join(s.cfg.Mailer.AttachmentsDir, name)
		if _, err := os.Stat(path); err != nil {
			s.logger.Warn("添付ファイルが見つかりません", zap.String("path", path))
			continue
		}
		attachments = append(attachments, path)
	}

	if s.cfg.Mailer.DryRun {
		// リハーサルではフラグも更新しない（本実行で改めて送る）
		s.logger.Info("[DRY_RUN] 送信をスキップしました",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Int("attachments", len(attachments)),
		)
		return true
	}

	if err := s.sender.Send(ctx, repository.OutboundMail{
		To:          to,
		Subject:     subject,
		Body:        body,
		Attachments: attachments,
	}); err != nil {
		s.logger.Error("送信に失敗しました", zap.String("to", to), zap.Error(err))
		return false
	}
	s.logger.Info("送信しました", zap.String("to", to), zap.String("subject", subject))

	if err := s.store.UpdateCell(ctx, rowNum, flagColumn, model.SentFlag); err != nil {
		s.logger.Error("送信済みフラグの更新に失敗しました",
			zap.Int("row", rowNum), zap.String("column", flagColumn), zap.Error(err))
		return false
	}
	return true
}

// replaceTags は本文・件名中の {タグ} を行の値で置換します
func (s *ReminderBatchService) replaceTags(text string, table *repository.Table, row []string) string {
	formatDay := func(column string) string {
		t := model.ParseSheetTime(table.Cell(row, column))
		if t.IsZero() {
			return ""
		}
		return t.Format("2006/01/02")
	}
	replacements := map[string]string{
		"{名前}":       table.Cell(row, model.ColName),
		"{予約ID}":     table.Cell(row, model.ColReservationID),
		"{チェックイン日}":  formatDay(model.ColCheckIn),
		"{チェックアウト日}": formatDay(model.ColCheckOut),
		"{サイト名}":     table.Cell(row, model.ColSiteName),
		"{料金}":       table.Cell(row, model.ColTotalPrice),
		"{備考}":       table.Cell(row, model.ColRemarks),
		"{南京錠}":      s.cfg.Mailer.LockCode,
	}
	for tag, value := range replacements {
		text = strings.ReplaceAll(text, tag, value)
	}
	return text
}

func columnAt(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}

// jstMidnight はJSTでの当日0時を返します（日単位の比較用）
func jstMidnight(t time.Time) time.Time {
	t = t.In(model.JST)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, model.JST)
}
