package extract

import (
	"testing"
	"time"

	"github.com/saigo112/gas-camping-reservation/internal/model"
)

const rakutenConfirmBody = `山田太郎様

この度はご予約いただき誠にありがとうございます。

▼予約詳細
予約ID: ABC-12345
宿泊期間: 2026/03/01 14:00 ～ 2026/03/02 10:00
サイト名: オートサイトA
予約サイト数: 1
大人2名 子供1名 幼児0名

▼予約者情報
お名前: 山田太郎
電話番号: 09012345678
メールアドレス: yamada@example.com

▼備考
ペット同伴希望
▼利用料金
利用料金: 12,000円
`

func TestRakutenReservationID(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "半角ラベル", body: "予約ID: ABC-12345", want: "ABC-12345"},
		{name: "全角ラベル", body: "予約ＩＤ：ABC-12345", want: "ABC-12345"},
		{name: "コロンなし", body: "予約ID ABC-12345", want: "ABC-12345"},
		{name: "ラベルなしは空", body: "本文に予約番号の記載なし", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rakutenReservationID(tt.body); got != tt.want {
				t.Errorf("rakutenReservationID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRakuten(t *testing.T) {
	msgDate := time.Date(2026, 2, 20, 9, 30, 0, 0, model.JST)
	r := parseRakuten(rakutenConfirmBody, msgDate)

	if !r.ReceivedAt.Equal(msgDate) {
		t.Errorf("ReceivedAt = %v, want %v", r.ReceivedAt, msgDate)
	}
	wantIn := time.Date(2026, 3, 1, 14, 0, 0, 0, model.JST)
	if !r.CheckIn.Equal(wantIn) {
		t.Errorf("CheckIn = %v, want %v", r.CheckIn, wantIn)
	}
	wantOut := time.Date(2026, 3, 2, 10, 0, 0, 0, model.JST)
	if !r.CheckOut.Equal(wantOut) {
		t.Errorf("CheckOut = %v, want %v", r.CheckOut, wantOut)
	}
	if r.SiteName != "オートサイトA" {
		t.Errorf("SiteName = %q, want オートサイトA", r.SiteName)
	}
	if r.SiteCount != "1" {
		t.Errorf("SiteCount = %q, want 1", r.SiteCount)
	}
	if r.Adult != 2 || r.Child != 1 || r.Infant != 0 {
		t.Errorf("people = %d/%d/%d, want 2/1/0", r.Adult, r.Child, r.Infant)
	}
	if r.Name != "山田太郎" {
		t.Errorf("Name = %q, want 山田太郎", r.Name)
	}
	if r.Phone != "09012345678" {
		t.Errorf("Phone = %q, want 09012345678", r.Phone)
	}
	if r.Email != "yamada@example.com" {
		t.Errorf("Email = %q, want yamada@example.com", r.Email)
	}
	if r.Remarks != "ペット同伴希望" {
		t.Errorf("Remarks = %q, want ペット同伴希望", r.Remarks)
	}
	if r.TotalPrice != "12,000" {
		t.Errorf("TotalPrice = %q, want 12,000", r.TotalPrice)
	}
	if !r.IsValid() {
		t.Error("IsValid() = false, want true")
	}
}

func TestParseRakutenCRLF(t *testing.T) {
	body := "予約ID: ABC-12345\r\n宿泊期間: 2026/03/01 14:00 ～ 2026/03/02 10:00\r\nお名前: 山田太郎\r\n"
	r := parseRakuten(body, time.Now())
	if r.Name != "山田太郎" {
		t.Errorf("Name = %q, want 山田太郎", r.Name)
	}
	wantIn := time.Date(2026, 3, 1, 14, 0, 0, 0, model.JST)
	if !r.CheckIn.Equal(wantIn) {
		t.Errorf("CheckIn = %v, want %v", r.CheckIn, wantIn)
	}
}

func TestRakutenPeriod(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantIn  time.Time
		wantOut time.Time
	}{
		{
			name:    "宿泊期間の両側に日時",
			body:    "宿泊期間: 2026/03/01 14:00 ～ 2026/03/02 10:00",
			wantIn:  time.Date(2026, 3, 1, 14, 0, 0, 0, model.JST),
			wantOut: time.Date(2026, 3, 2, 10, 0, 0, 0, model.JST),
		},
		{
			name:    "右側が時刻のみは1泊とみなす",
			body:    "宿泊期間: 2026/03/01 14:00 ～ 10:00",
			wantIn:  time.Date(2026, 3, 1, 14, 0, 0, 0, model.JST),
			wantOut: time.Date(2026, 3, 2, 10, 0, 0, 0, model.JST),
		},
		{
			name:    "右側が同日より後の時刻は同日のまま",
			body:    "宿泊期間: 2026/03/01 10:00 ～ 21:00",
			wantIn:  time.Date(2026, 3, 1, 10, 0, 0, 0, model.JST),
			wantOut: time.Date(2026, 3, 1, 21, 0, 0, 0, model.JST),
		},
		{
			name:    "和暦風の区切り",
			body:    "宿泊期間: 2026年3月1日 14:00 ～ 2026年3月2日 10:00",
			wantIn:  time.Date(2026, 3, 1, 14, 0, 0, 0, model.JST),
			wantOut: time.Date(2026, 3, 2, 10, 0, 0, 0, model.JST),
		},
		{
			name:    "日帰りの利用日はチェックアウト18時固定",
			body:    "利用日: 2026/04/05 10:00",
			wantIn:  time.Date(2026, 4, 5, 10, 0, 0, 0, model.JST),
			wantOut: time.Date(2026, 4, 5, 18, 0, 0, 0, model.JST),
		},
		{
			name:    "利用日が日付のみでも18時固定",
			body:    "利用日: 2026/04/05",
			wantIn:  time.Date(2026, 4, 5, 0, 0, 0, 0, model.JST),
			wantOut: time.Date(2026, 4, 5, 18, 0, 0, 0, model.JST),
		},
		{
			name: "期間欄なしはゼロ値",
			body: "宿泊のご案内です",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkIn, checkOut := rakutenPeriod(tt.body)
			if !checkIn.Equal(tt.wantIn) {
				t.Errorf("checkIn = %v, want %v", checkIn, tt.wantIn)
			}
			if !checkOut.Equal(tt.wantOut) {
				t.Errorf("checkOut = %v, want %v", checkOut, tt.wantOut)
			}
		})
	}
}

func TestParseRakutenMissingFields(t *testing.T) {
	// 名前が取れない本文は無効レコードになる（抽出全体は失敗させない）
	body := "予約ID: ABC-12345\n宿泊期間: 2026/03/01 14:00 ～ 2026/03/02 10:00\n"
	r := parseRakuten(body, time.Now())
	if r.Name != "" {
		t.Errorf("Name = %q, want empty", r.Name)
	}
	if r.IsValid() {
		t.Error("IsValid() = true, want false")
	}
}
