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
	"github.com/saigo112/gas-camping-reservation/internal/reconcile"
	"github.com/saigo112/gas-camping-reservation/internal/repository"
)

// IngestBatchService は予約メールの取り込みバッチを担当します
// 1回の実行で メール検索 → 分類・抽出 → キャンセル反映 → 新規挿入 →
// チェックイン完了更新 → 並べ替え → 処理済みマーカー付与 を行います
type IngestBatchService struct {
	cfg     *config.Config
	store   repository.SheetStore
	mailbox repository.Mailbox
	lock    repository.BatchLock
	logger  *zap.Logger
	now     func() time.Time
}

// NewIngestBatchService は新しいIngestBatchServiceを作成します
func NewIngestBatchService(
	cfg *config.Config,
	store repository.SheetStore,
	mailbox repository.Mailbox,
	lock repository.BatchLock,
	logger *zap.Logger,
) *IngestBatchService {
	return &IngestBatchService{
		cfg:     cfg,
		store:   store,
		mailbox: mailbox,
		lock:    lock,
		logger:  logger,
		now:     func() time.Time { return time.Now().In(model.JST) },
	}
}

// Run は取り込みバッチを実行します
// ロックが取れない場合はスキップして正常終了します（次回トリガー任せ）
func (s *IngestBatchService) Run(ctx context.Context) error {
	ctx, seg := xray.BeginSubsegment(ctx, "IngestBatchService.Run")
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
		// 解放はバッチのctxが切れていても行う
		if err := s.lock.Unlock(context.Background()); err != nil {
			s.logger.Warn("ロック解放に失敗しました", zap.Error(err))
		}
	}()

	startTime := time.Now()

	// ヘッダー整備。シートがない・壊れている場合はここで致命的エラーになる
	header, err := s.store.EnsureColumns(ctx, model.SheetColumns)
	if err != nil {
		return utils.GetStackWithError(fmt.Errorf("failed to ensure sheet columns: %w", err))
	}

	plan, err := s.buildPlan(ctx)
	if err != nil {
		return utils.GetStackWithError(err)
	}

	if err := s.applyPlan(ctx, header, plan); err != nil {
		return utils.GetStackWithError(err)
	}

	// チェックイン完了更新は挿入・キャンセル反映後の行に対して行う
	promoted, err := s.updateCheckinCompleted(ctx)
	if err != nil {
		return utils.GetStackWithError(fmt.Errorf("failed to update checked-in rows: %w", err))
	}

	if err := s.store.SortByColumnDesc(ctx, model.ColReceivedAt); err != nil {
		return utils.GetStackWithError(fmt.Errorf("failed to sort sheet: %w", err))
	}

	// マーカー付与の失敗は取り込み済みデータを巻き戻さない（ログのみ）
	if err := s.mailbox.Tag(ctx, plan.Claimed); err != nil {
		s.logger.Warn("処理済みマーカーの付与に失敗しました", zap.Error(err))
	}

	duration := time.Since(startTime)
	if err := seg.AddMetadata("duration", duration.String()); err != nil {
		s.logger.Warn("failed to add duration metadata", zap.Error(err))
	}

	s.logger.Info("取り込みバッチが完了しました",
		zap.Int("inserted", len(plan.Inserts)),
		zap.Int("cancelled", len(plan.Cancels)),
		zap.Int("checked_in", promoted),
		zap.Int("tagged", len(plan.Claimed)),
		zap.Duration("duration", duration),
	)
	return nil
}

// buildPlan はシートのスナップショットと受信メールからバッチ計画を立てます
// この段階では書き込みを行いません
func (s *IngestBatchService) buildPlan(ctx context.Context) (reconcile.Plan, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "IngestBatchService.buildPlan")
	defer seg.Close(nil)

	table, err := s.store.ReadAll(ctx)
	if err != nil {
		return reconcile.Plan{}, fmt.Errorf("failed to read sheet: %w", err)
	}
	snapshot := reconcile.BuildSnapshot(table.Header, table.Rows)

	since := s.now().Add(-s.cfg.Search.Period)
	messages, err := s.mailbox.Search(ctx, s.cfg.Senders(), since, s.cfg.Search.MaxMessages)
	if err != nil {
		return reconcile.Plan{}, fmt.Errorf("failed to search mailbox: %w", err)
	}
	s.logger.Info("メールを検索しました",
		zap.Int("messages", len(messages)),
		zap.Time("since", since),
	)

	return reconcile.Build(s.cfg.Platforms, snapshot, messages), nil
}

// applyPlan は計画を キャンセル → 挿入 の順で適用します
// 同一バッチ内でキャンセルと確定が同時に来ても終端状態がキャンセル済みになる順序です
func (s *IngestBatchService) applyPlan(ctx context.Context, header []string, plan reconcile.Plan) error {
	ctx, seg := xray.BeginSubsegment(ctx, "IngestBatchService.applyPlan")
	defer seg.Close(nil)

	for _, cancel := range plan.Cancels {
		if err := s.store.UpdateCell(ctx, cancel.Row, model.ColStatus, string(model.StatusCancelled)); err != nil {
			return fmt.Errorf("failed to cancel row %d (%s): %w", cancel.Row, cancel.Key, err)
		}
		s.logger.Info("キャンセルを反映しました", zap.String("key", cancel.Key), zap.Int("row", cancel.Row))
	}

	if len(plan.Inserts) == 0 {
		return nil
	}
	rows := make([][]interface{}, len(plan.Inserts))
	for i, record := range plan.Inserts {
		rows[i] = record.ToRow(header)
	}
	// ヘッダー直下にまとめて挿入する。全体の時系列は後段の並べ替えで揃える
	if err := s.store.InsertRows(ctx, 2, rows); err != nil {
		return fmt.Errorf("failed to insert %d rows: %w", len(rows), err)
	}
	for _, record := range plan.Inserts {
		s.logger.Info("新規予約を挿入しました",
			zap.String("key", record.Key()),
			zap.String("status", string(record.Status)),
		)
	}

	// 予約IDと電話番号は文字列書式にしておく（0落ち・指数表記の防止）
	for _, column := range []string{model.ColReservationID, model.ColPhone} {
		if err := s.store.TextFormatColumn(ctx, column); err != nil {
			s.logger.Warn("文字列書式の設定に失敗しました", zap.String("column", column), zap.Error(err))
		}
	}
	return nil
}

// updateCheckinCompleted は「予約中」かつチェックイン日時を過ぎた行を
// 「チェックイン完了」へ進めます。逆方向の遷移はありません
func (s *IngestBatchService) updateCheckinCompleted(ctx context.Context) (int, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "IngestBatchService.updateCheckinCompleted")
	defer seg.Close(nil)

	table, err := s.store.ReadAll(ctx)
	if err != nil {
		return 0, err
	}
	if !table.HasColumn(model.ColStatus) || !table.HasColumn(model.ColCheckIn) {
		return 0, nil
	}

	now := s.now()
	promoted := 0
	for i, row := range table.Rows {
		if model.Status(table.Cell(row, model.ColStatus)) != model.StatusBooked {
			continue
		}
		checkIn := model.ParseSheetTime(table.Cell(row, model.ColCheckIn))
		if checkIn.IsZero() || checkIn.After(now) {
			continue
		}
		rowNum := i + 2
		if err := s.store.UpdateCell(ctx, rowNum, model.ColStatus, string(model.StatusCheckedIn)); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}
