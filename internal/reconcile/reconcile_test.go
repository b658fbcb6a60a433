package reconcile

import (
	"fmt"
	"testing"
	"time"

	"github.com/saigo112/gas-camping-reservation/internal/extract"
	"github.com/saigo112/gas-camping-reservation/internal/model"
)

var testRules = []extract.Rule{
	{
		Platform:       model.PlatformRakuten,
		From:           "no-reply@camp.travel.rakuten.co.jp",
		ConfirmSubject: "予約が確定しました",
		CancelSubject:  "予約がキャンセルされました",
	},
	{
		Platform:       model.PlatformNap,
		From:           "rsv@nap-camp.com",
		ConfirmSubject: "ご予約ありがとうございます",
		CancelSubject:  "キャンセル",
	},
}

func rakutenBody(id, name string) string {
	return fmt.Sprintf("予約ID: %s\n宿泊期間: 2026/03/01 14:00 ～ 2026/03/02 10:00\nお名前: %s\n", id, name)
}

func confirmMsg(msgID, reservationID string, date time.Time) model.InboundMessage {
	return model.InboundMessage{
		ID:      msgID,
		From:    "no-reply@camp.travel.rakuten.co.jp",
		Subject: "【楽天トラベル】予約が確定しました",
		Body:    rakutenBody(reservationID, "山田太郎"),
		Date:    date,
	}
}

func cancelMsg(msgID, reservationID string, date time.Time) model.InboundMessage {
	return model.InboundMessage{
		ID:      msgID,
		From:    "no-reply@camp.travel.rakuten.co.jp",
		Subject: "【楽天トラベル】予約がキャンセルされました",
		Body:    "予約ID: " + reservationID + "\n",
		Date:    date,
	}
}

func TestBuildSnapshot(t *testing.T) {
	header := []string{model.ColReceivedAt, model.ColReservationID, model.ColPlatform}
	rows := [][]string{
		{"2026/02/01 20:15", "ABC-1", "楽天トラベル"},
		{"2026/02/02 09:00", "C01-2", "なっぷ"},
		{"2026/02/03 10:00", "", "楽天トラベル"}, // IDなしの行は索引に載らない
	}
	snapshot := BuildSnapshot(header, rows)
	if len(snapshot) != 2 {
		t.Fatalf("len(snapshot) = %d, want 2", len(snapshot))
	}
	if got := snapshot["楽天トラベル:ABC-1"]; got != 2 {
		t.Errorf("row for 楽天トラベル:ABC-1 = %d, want 2", got)
	}
	if got := snapshot["なっぷ:C01-2"]; got != 3 {
		t.Errorf("row for なっぷ:C01-2 = %d, want 3", got)
	}
}

func TestBuildSnapshotWithoutIDColumn(t *testing.T) {
	snapshot := BuildSnapshot([]string{"メモ"}, [][]string{{"何か"}})
	if len(snapshot) != 0 {
		t.Errorf("len(snapshot) = %d, want 0", len(snapshot))
	}
}

func TestBuildInsertsNewConfirmation(t *testing.T) {
	date := time.Date(2026, 2, 20, 9, 0, 0, 0, model.JST)
	plan := Build(testRules, Snapshot{}, []model.InboundMessage{
		confirmMsg("m1", "ABC-1", date),
	})

	if len(plan.Cancels) != 0 {
		t.Errorf("len(Cancels) = %d, want 0", len(plan.Cancels))
	}
	if len(plan.Inserts) != 1 {
		t.Fatalf("len(Inserts) = %d, want 1", len(plan.Inserts))
	}
	got := plan.Inserts[0]
	if got.ReservationID != "ABC-1" {
		t.Errorf("ReservationID = %q, want ABC-1", got.ReservationID)
	}
	if got.Status != model.StatusBooked {
		t.Errorf("Status = %v, want %v", got.Status, model.StatusBooked)
	}
	if len(plan.Claimed) != 1 || plan.Claimed[0] != "m1" {
		t.Errorf("Claimed = %v, want [m1]", plan.Claimed)
	}
}

func TestBuildIdempotentReingestion(t *testing.T) {
	// 既に取り込んだ予約の確定メールを再度読んでも挿入されない
	date := time.Date(2026, 2, 20, 9, 0, 0, 0, model.JST)
	snapshot := Snapshot{"楽天トラベル:ABC-1": 2}
	plan := Build(testRules, snapshot, []model.InboundMessage{
		confirmMsg("m1", "ABC-1", date),
	})

	if len(plan.Inserts) != 0 {
		t.Errorf("len(Inserts) = %d, want 0", len(plan.Inserts))
	}
	if len(plan.Cancels) != 0 {
		t.Errorf("len(Cancels) = %d, want 0", len(plan.Cancels))
	}
}

func TestBuildCancelExistingRow(t *testing.T) {
	date := time.Date(2026, 2, 21, 9, 0, 0, 0, model.JST)
	snapshot := Snapshot{"楽天トラベル:ABC-1": 5}
	plan := Build(testRules, snapshot, []model.InboundMessage{
		cancelMsg("m2", "ABC-1", date),
	})

	if len(plan.Cancels) != 1 {
		t.Fatalf("len(Cancels) = %d, want 1", len(plan.Cancels))
	}
	if plan.Cancels[0].Row != 5 || plan.Cancels[0].Key != "楽天トラベル:ABC-1" {
		t.Errorf("Cancels[0] = %+v", plan.Cancels[0])
	}
	if len(plan.Inserts) != 0 {
		t.Errorf("len(Inserts) = %d, want 0", len(plan.Inserts))
	}
}

func TestBuildCancelUnknownKey(t *testing.T) {
	// 確定を取り込む前にキャンセルだけ届いたケース。行がないので何も更新しない
	date := time.Date(2026, 2, 21, 9, 0, 0, 0, model.JST)
	plan := Build(testRules, Snapshot{}, []model.InboundMessage{
		cancelMsg("m2", "ABC-1", date),
	})

	if len(plan.Cancels) != 0 {
		t.Errorf("len(Cancels) = %d, want 0", len(plan.Cancels))
	}
	if len(plan.Inserts) != 0 {
		t.Errorf("len(Inserts) = %d, want 0", len(plan.Inserts))
	}
	if len(plan.Claimed) != 1 {
		t.Errorf("len(Claimed) = %d, want 1", len(plan.Claimed))
	}
}

func TestBuildConfirmAndCancelSameBatch(t *testing.T) {
	confirmAt := time.Date(2026, 2, 20, 9, 0, 0, 0, model.JST)
	cancelAt := confirmAt.Add(2 * time.Hour)

	// メールの並び順に依存しないこと
	orders := map[string][]model.InboundMessage{
		"確定→キャンセルの順": {
			confirmMsg("m1", "ABC-1", confirmAt),
			cancelMsg("m2", "ABC-1", cancelAt),
		},
		"キャンセル→確定の順": {
			cancelMsg("m2", "ABC-1", cancelAt),
			confirmMsg("m1", "ABC-1", confirmAt),
		},
	}
	for name, msgs := range orders {
		t.Run(name, func(t *testing.T) {
			plan := Build(testRules, Snapshot{}, msgs)
			if len(plan.Inserts) != 1 {
				t.Fatalf("len(Inserts) = %d, want 1", len(plan.Inserts))
			}
			if plan.Inserts[0].Status != model.StatusCancelled {
				t.Errorf("Status = %v, want %v", plan.Inserts[0].Status, model.StatusCancelled)
			}
			if len(plan.Cancels) != 0 {
				t.Errorf("len(Cancels) = %d, want 0", len(plan.Cancels))
			}
		})
	}
}

func TestBuildLatestConfirmationWins(t *testing.T) {
	earlier := time.Date(2026, 2, 20, 9, 0, 0, 0, model.JST)
	later := earlier.Add(time.Hour)

	newer := confirmMsg("m2", "ABC-1", later)
	newer.Body = rakutenBody("ABC-1", "山田次郎")

	plan := Build(testRules, Snapshot{}, []model.InboundMessage{
		confirmMsg("m1", "ABC-1", earlier),
		newer,
	})
	if len(plan.Inserts) != 1 {
		t.Fatalf("len(Inserts) = %d, want 1", len(plan.Inserts))
	}
	if plan.Inserts[0].Name != "山田次郎" {
		t.Errorf("Name = %q, want 山田次郎（日時の新しい方）", plan.Inserts[0].Name)
	}
}

func TestBuildSameTimestampKeepsFirst(t *testing.T) {
	date := time.Date(2026, 2, 20, 9, 0, 0, 0, model.JST)

	second := confirmMsg("m2", "ABC-1", date)
	second.Body = rakutenBody("ABC-1", "山田次郎")

	plan := Build(testRules, Snapshot{}, []model.InboundMessage{
		confirmMsg("m1", "ABC-1", date),
		second,
	})
	if len(plan.Inserts) != 1 {
		t.Fatalf("len(Inserts) = %d, want 1", len(plan.Inserts))
	}
	if plan.Inserts[0].Name != "山田太郎" {
		t.Errorf("Name = %q, want 山田太郎（先着を維持）", plan.Inserts[0].Name)
	}
}

func TestBuildTaggedMessages(t *testing.T) {
	date := time.Date(2026, 2, 20, 9, 0, 0, 0, model.JST)

	taggedConfirm := confirmMsg("m1", "ABC-1", date)
	taggedConfirm.Tagged = true
	taggedCancel := cancelMsg("m2", "ABC-2", date)
	taggedCancel.Tagged = true

	snapshot := Snapshot{"楽天トラベル:ABC-2": 3}
	plan := Build(testRules, snapshot, []model.InboundMessage{taggedConfirm, taggedCancel})

	// 処理済みの確定メールは読み飛ばす
	if len(plan.Inserts) != 0 {
		t.Errorf("len(Inserts) = %d, want 0", len(plan.Inserts))
	}
	// 処理済みマーカーが付いていてもキャンセルは拾う
	if len(plan.Cancels) != 1 {
		t.Fatalf("len(Cancels) = %d, want 1", len(plan.Cancels))
	}
	if plan.Cancels[0].Key != "楽天トラベル:ABC-2" {
		t.Errorf("Cancels[0].Key = %q, want 楽天トラベル:ABC-2", plan.Cancels[0].Key)
	}
}

func TestBuildSkipsIrrelevantMessages(t *testing.T) {
	date := time.Date(2026, 2, 20, 9, 0, 0, 0, model.JST)
	plan := Build(testRules, Snapshot{}, []model.InboundMessage{
		{
			ID:      "m1",
			From:    "newsletter@example.com",
			Subject: "お知らせ",
			Body:    "予約ID: ABC-1",
			Date:    date,
		},
		{
			ID:      "m2",
			From:    "no-reply@camp.travel.rakuten.co.jp",
			Subject: "【楽天トラベル】お得なキャンペーンのお知らせ",
			Body:    rakutenBody("ABC-2", "山田太郎"),
			Date:    date,
		},
	})
	if len(plan.Inserts) != 0 || len(plan.Cancels) != 0 || len(plan.Claimed) != 0 {
		t.Errorf("plan = %+v, want empty", plan)
	}
}

func TestBuildSkipsInsufficientExtraction(t *testing.T) {
	date := time.Date(2026, 2, 20, 9, 0, 0, 0, model.JST)
	msg := confirmMsg("m1", "ABC-1", date)
	msg.Body = "予約ID: ABC-1\n" // 名前もチェックイン日時もない

	plan := Build(testRules, Snapshot{}, []model.InboundMessage{msg})
	if len(plan.Inserts) != 0 {
		t.Errorf("len(Inserts) = %d, want 0", len(plan.Inserts))
	}
	// 件名・IDの判定までは成立しているのでマーカーは付ける
	if len(plan.Claimed) != 1 {
		t.Errorf("len(Claimed) = %d, want 1", len(plan.Claimed))
	}
}

func TestBuildInsertsSortedByReceivedAtDesc(t *testing.T) {
	base := time.Date(2026, 2, 20, 9, 0, 0, 0, model.JST)
	plan := Build(testRules, Snapshot{}, []model.InboundMessage{
		confirmMsg("m1", "ABC-1", base),
		confirmMsg("m2", "ABC-2", base.Add(2*time.Hour)),
		confirmMsg("m3", "ABC-3", base.Add(time.Hour)),
	})
	if len(plan.Inserts) != 3 {
		t.Fatalf("len(Inserts) = %d, want 3", len(plan.Inserts))
	}
	wantOrder := []string{"ABC-2", "ABC-3", "ABC-1"}
	for i, want := range wantOrder {
		if plan.Inserts[i].ReservationID != want {
			t.Errorf("Inserts[%d].ReservationID = %q, want %q", i, plan.Inserts[i].ReservationID, want)
		}
	}
}
