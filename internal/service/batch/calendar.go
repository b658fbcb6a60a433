package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"go.uber.org/zap"

	"github.com/saigo112/gas-camping-reservation/internal/common/config"
	"github.com/saigo112/gas-camping-reservation/internal/common/utils"
	"github.com/saigo112/gas-camping-reservation/internal/model"
	"github.com/saigo112/gas-camping-reservation/internal/repository"
)

// CalendarSyncService はシートの内容をカレンダーへ反映します（追加・削除）
// 行ごとの失敗はログに残してスキップし、バッチ全体は止めません
type CalendarSyncService struct {
	cfg      *config.Config
	store    repository.SheetStore
	calendar repository.Calendar
	lock     repository.BatchLock
	logger   *zap.Logger
	now      func() time.Time
}

// NewCalendarSyncService は新しいCalendarSyncServiceを作成します
func NewCalendarSyncService(
	cfg *config.Config,
	store repository.SheetStore,
	calendar repository.Calendar,
	lock repository.BatchLock,
	logger *zap.Logger,
) *CalendarSyncService {
	return &CalendarSyncService{
		cfg:      cfg,
		store:    store,
		calendar: calendar,
		lock:     lock,
		logger:   logger,
		now:      func() time.Time { return time.Now().In(model.JST) },
	}
}

// Run はカレンダー同期を実行します
func (s *CalendarSyncService) Run(ctx context.Context) error {
	ctx, seg := xray.BeginSubsegment(ctx, "CalendarSyncService.Run")
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

	table, err := s.store.ReadAll(ctx)
	if err != nil {
		return utils.GetStackWithError(fmt.Errorf("failed to read sheet: %w", err))
	}
	required := []string{
		model.ColReservationID, model.ColStatus, model.ColCheckIn,
		model.ColCheckOut, model.ColName, model.ColCalendarEventID,
	}
	for _, column := range required {
		if !table.HasColumn(column) {
			return utils.GetStackWithError(fmt.Errorf("required column not found: %s", column))
		}
	}

	now := s.now()
	created, deleted := 0, 0

	for i, row := range table.Rows {
		rowNum := i + 2
		status := model.Status(table.Cell(row, model.ColStatus))
		eventID := table.Cell(row, model.ColCalendarEventID)

		switch {
		// 新規作成: 予約中 かつ イベント未登録 かつ 未来のチェックイン
		case status == model.StatusBooked && eventID == "":
			checkIn := model.ParseSheetTime(table.Cell(row, model.ColCheckIn))
			if checkIn.IsZero() || !checkIn.After(now) {
				continue
			}
			if id, ok := s.createEvent(ctx, table, row, rowNum, checkIn); ok {
				created++
				if err := s.store.UpdateCell(ctx, rowNum, model.ColCalendarEventID, id); err != nil {
					return utils.GetStackWithError(fmt.Errorf("failed to record event id row %d: %w", rowNum, err))
				}
			}

		// 削除: キャンセル済み かつ イベント登録済み
		case status == model.StatusCancelled && eventID != "":
			if err := s.calendar.DeleteEvent(ctx, eventID); err != nil {
				// 削除失敗でもIDは消す。消えた遠隔イベントへの無限リトライを避ける
				s.logger.Warn("カレンダー削除に失敗しました",
					zap.Int("row", rowNum), zap.String("event_id", eventID), zap.Error(err))
			} else {
				deleted++
			}
			if err := s.store.UpdateCell(ctx, rowNum, model.ColCalendarEventID, ""); err != nil {
				return utils.GetStackWithError(fmt.Errorf("failed to clear event id row %d: %w", rowNum, err))
			}
		}
	}

	s.logger.Info("カレンダー同期が完了しました",
		zap.Int("created", created),
		zap.Int("deleted", deleted),
	)
	return nil
}

// createEvent は1行分の予定を登録します。失敗時はIDを記録せず次回再試行に回します
func (s *CalendarSyncService) createEvent(ctx context.Context, table *repository.Table, row []string, rowNum int, checkIn time.Time) (string, bool) {
	reservationID := table.Cell(row, model.ColReservationID)
	platform := table.Cell(row, model.ColPlatform)
	name := table.Cell(row, model.ColName)
	siteName := table.Cell(row, model.ColSiteName)

	end := model.ParseSheetTime(table.Cell(row, model.ColCheckOut))
	if end.IsZero() {
		// チェックアウト不明時は開始1時間後で仮置き
		end = checkIn.Add(time.Hour)
	}

	event := repository.CalendarEvent{
		Title:       fmt.Sprintf("【%s】【予約ID:%s】%s様 (%s)", platform, reservationID, name, siteName),
		Description: fmt.Sprintf("予約元: %s\n予約ID: %s\nサイト: %s\n名前: %s\n自動連携により作成", platform, reservationID, siteName, name),
		Start:       checkIn,
		End:         end,
	}
	id, err := s.calendar.CreateEvent(ctx, event)
	if err != nil {
		s.logger.Warn("カレンダー追加に失敗しました",
			zap.Int("row", rowNum), zap.String("reservation_id", reservationID), zap.Error(err))
		return "", false
	}
	s.logger.Info("カレンダーに追加しました", zap.String("title", event.Title))
	return id, true
}
