// Package reconcile は受信メールの一括スキャン結果とシートのスナップショットから
// 「どの行をキャンセルに更新し、どの行を新規挿入するか」を純粋に計算します。
// シートへの書き込みは一切行いません（判定を確定してから適用する方針）。
package reconcile

import (
	"sort"
	"time"

	"github.com/saigo112/gas-camping-reservation/internal/extract"
	"github.com/saigo112/gas-camping-reservation/internal/model"
)

// Snapshot はバッチ開始時点の「複合キー → 行番号（1始まり、ヘッダー=1行目）」索引です
// バッチ途中で読み直さない。鮮度はバッチロックの保持時間の範囲で保証されます
type Snapshot map[string]int

// BuildSnapshot はシートのヘッダーとデータ行からスナップショット索引を作ります
// rows[0] がシートの2行目に対応します
func BuildSnapshot(header []string, rows [][]string) Snapshot {
	platformCol, idCol := -1, -1
	for i, h := range header {
		switch h {
		case model.ColPlatform:
			platformCol = i
		case model.ColReservationID:
			idCol = i
		}
	}
	snapshot := make(Snapshot, len(rows))
	if idCol < 0 {
		return snapshot
	}
	for i, row := range rows {
		id := cellAt(row, idCol)
		if id == "" {
			continue
		}
		snapshot[model.ReservationKey(cellAt(row, platformCol), id)] = i + 2
	}
	return snapshot
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// Cancel は既存行1件のキャンセル更新を表します
type Cancel struct {
	Key string
	Row int
}

// Plan は1バッチ分の適用内容です。キャンセル更新 → 新規挿入の順で適用します
type Plan struct {
	Cancels []Cancel
	Inserts []model.Reservation
	Claimed []string // 処理済みマーカーを付けるメッセージID
}

type candidate struct {
	record  model.Reservation
	msgDate time.Time
}

// Build はメール一式を分類・抽出してバッチ計画を立てます
//
// ルール:
//   - 処理済みマーカーが付いたメールはキャンセル検出のみ行う
//     （確定を取り込んだ後にキャンセルが届くのが定常ケース）
//   - 同一キーの確定メールが複数ある場合はメール日時が厳密に新しいものだけ採用する
//     （再送・訂正メール対応。同時刻は先着を維持）
//   - キャンセルはキーの有無だけを見る（後勝ち不要）
//   - 抽出不十分（チェックイン日時か名前が取れない）な確定メールは黙って捨てる
func Build(rules []extract.Rule, snapshot Snapshot, msgs []model.InboundMessage) Plan {
	cancelled := make(map[string]bool)
	confirmed := make(map[string]candidate)
	claimed := make(map[string]bool)

	for _, msg := range msgs {
		rule, ok := extract.DetectPlatform(msg.From, rules)
		if !ok {
			continue
		}
		id := extract.ReservationID(rule.Platform, msg.Subject, msg.Body)
		if id == "" {
			continue
		}
		key := model.ReservationKey(rule.Platform.Label(), id)

		isCancel := rule.IsCancel(msg.Subject)
		if msg.Tagged && !isCancel {
			continue
		}

		if isCancel {
			cancelled[key] = true
			claimed[msg.ID] = true
			continue
		}

		if !rule.IsConfirm(msg.Subject) {
			continue
		}
		claimed[msg.ID] = true

		if prev, ok := confirmed[key]; ok && !msg.Date.After(prev.msgDate) {
			continue
		}

		record := extract.Parse(rule.Platform, msg.Subject, msg.Body, msg.Date)
		record.ReservationID = id
		if !record.IsValid() {
			// 抽出不十分。エラーではない（送信元フィルタに掛かった無関係メール等）
			continue
		}
		confirmed[key] = candidate{record: record, msgDate: msg.Date}
	}

	var plan Plan

	for key := range cancelled {
		if row, ok := snapshot[key]; ok {
			plan.Cancels = append(plan.Cancels, Cancel{Key: key, Row: row})
		}
	}
	sort.Slice(plan.Cancels, func(i, j int) bool { return plan.Cancels[i].Row < plan.Cancels[j].Row })

	for key, cand := range confirmed {
		// 既存行があれば何もしない（再取り込みで他フィールドを上書きしない）
		if _, ok := snapshot[key]; ok {
			continue
		}
		record := cand.record
		if cancelled[key] {
			// 同一バッチ内でキャンセルが先行・同時到着したケース。最初からキャンセル済みで挿入する
			record.Status = model.StatusCancelled
		} else {
			record.Status = model.StatusBooked
		}
		plan.Inserts = append(plan.Inserts, record)
	}
	sort.Slice(plan.Inserts, func(i, j int) bool {
		if !plan.Inserts[i].ReceivedAt.Equal(plan.Inserts[j].ReceivedAt) {
			return plan.Inserts[i].ReceivedAt.After(plan.Inserts[j].ReceivedAt)
		}
		return plan.Inserts[i].Key() < plan.Inserts[j].Key()
	})

	for id := range claimed {
		plan.Claimed = append(plan.Claimed, id)
	}
	sort.Strings(plan.Claimed)

	return plan
}
