package extract

import (
	"testing"
	"time"

	"github.com/saigo112/gas-camping-reservation/internal/model"
)

const napConfirmBody = `鈴木花子様

この度はご予約いただきありがとうございます。

■ご予約内容
予約詳細番号　　　　：C01-123456
予約日時　　　　　　：2026年02月01日 20時15分
チェックイン日時　　：2026年02月14日(土) 13時00分
チェックアウト日時　：2026年02月15日(日) 11時00分
予約施設　　　　　　：林間サイト
人数　　　　　　　　：大人 2人、子供 0人、幼児 1人
代表者氏名　　　　　：鈴木花子
代表者連絡先　　　　：08011112222
お客様のメールアドレス：[suzuki@example.com]

■ご要望
焚き火台をレンタルしたいです

利用料総額　　　　　：8,800円
`

func TestNapReservationID(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		body    string
		want    string
	}{
		{
			name:    "本文の予約詳細番号を優先",
			subject: "【なっぷ】ご予約ありがとうございます C01-999999",
			body:    napConfirmBody,
			want:    "C01-123456",
		},
		{
			name:    "本文になければ件名から拾う",
			subject: "【なっぷ】ご予約ありがとうございます C01-999999",
			body:    "番号の記載がない本文",
			want:    "C01-999999",
		},
		{
			name:    "どちらにもなければ空",
			subject: "【なっぷ】ご予約ありがとうございます",
			body:    "番号の記載がない本文",
			want:    "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := napReservationID(tt.subject, tt.body); got != tt.want {
				t.Errorf("napReservationID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseNap(t *testing.T) {
	msgDate := time.Date(2026, 2, 1, 20, 20, 0, 0, model.JST)
	r := parseNap(napConfirmBody, msgDate)

	// 予約日時は本文の記載を優先する（メール到着時刻ではない）
	wantReceived := time.Date(2026, 2, 1, 20, 15, 0, 0, model.JST)
	if !r.ReceivedAt.Equal(wantReceived) {
		t.Errorf("ReceivedAt = %v, want %v", r.ReceivedAt, wantReceived)
	}
	wantIn := time.Date(2026, 2, 14, 13, 0, 0, 0, model.JST)
	if !r.CheckIn.Equal(wantIn) {
		t.Errorf("CheckIn = %v, want %v", r.CheckIn, wantIn)
	}
	wantOut := time.Date(2026, 2, 15, 11, 0, 0, 0, model.JST)
	if !r.CheckOut.Equal(wantOut) {
		t.Errorf("CheckOut = %v, want %v", r.CheckOut, wantOut)
	}
	if r.SiteName != "林間サイト" {
		t.Errorf("SiteName = %q, want 林間サイト", r.SiteName)
	}
	if r.SiteCount != "" {
		t.Errorf("SiteCount = %q, want empty", r.SiteCount)
	}
	if r.Adult != 2 || r.Child != 0 || r.Infant != 1 {
		t.Errorf("people = %d/%d/%d, want 2/0/1", r.Adult, r.Child, r.Infant)
	}
	if r.Name != "鈴木花子" {
		t.Errorf("Name = %q, want 鈴木花子", r.Name)
	}
	if r.Phone != "08011112222" {
		t.Errorf("Phone = %q, want 08011112222", r.Phone)
	}
	if r.Email != "suzuki@example.com" {
		t.Errorf("Email = %q, want suzuki@example.com", r.Email)
	}
	if r.Remarks != "焚き火台をレンタルしたいです" {
		t.Errorf("Remarks = %q, want 焚き火台をレンタルしたいです", r.Remarks)
	}
	if r.TotalPrice != "8,800円" {
		t.Errorf("TotalPrice = %q, want 8,800円", r.TotalPrice)
	}
	if !r.IsValid() {
		t.Error("IsValid() = false, want true")
	}
}

func TestParseNapWithoutReservedAt(t *testing.T) {
	// 予約日時欄がない場合はメール日時で代用する
	body := `チェックイン日時　　：2026年02月14日(土) 13時00分
代表者氏名　　　　　：鈴木花子
`
	msgDate := time.Date(2026, 2, 1, 20, 20, 0, 0, model.JST)
	r := parseNap(body, msgDate)
	if !r.ReceivedAt.Equal(msgDate) {
		t.Errorf("ReceivedAt = %v, want %v", r.ReceivedAt, msgDate)
	}
	if !r.IsValid() {
		t.Error("IsValid() = false, want true")
	}
}
