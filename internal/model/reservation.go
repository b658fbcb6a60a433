package model

import "time"

// Platform は予約メールの送信元プラットフォームを表します
type Platform string

const (
	PlatformRakuten Platform = "rakuten"
	PlatformNap     Platform = "nap"
)

// Label はシートの「予約元」列に書き込む日本語表記を返します
func (p Platform) Label() string {
	switch p {
	case PlatformRakuten:
		return "楽天トラベル"
	case PlatformNap:
		return "なっぷ"
	default:
		return string(p)
	}
}

// Status は予約のライフサイクル状態を表します
// シートには日本語ラベルがそのまま保存されます
type Status string

const (
	// StatusBooked は予約確定メールを取り込んだ直後の状態です
	StatusBooked Status = "予約中"
	// StatusCancelled はキャンセルメールを検出した状態です（行は削除しない）
	StatusCancelled Status = "キャンセル済み"
	// StatusCheckedIn はチェックイン日時を過ぎた状態です（逆戻りしない）
	StatusCheckedIn Status = "チェックイン完了"
)

// SentFlag は送信済みフラグ列に書き込む値です
const SentFlag = "送信済み"

// Reservation は予約1件（シート1行）を表す構造体です
type Reservation struct {
	Platform        Platform
	ReservationID   string
	ReceivedAt      time.Time // プラットフォームが予約を確定した日時（処理日時ではない）
	CheckIn         time.Time // ゼロ値 = 未抽出
	CheckOut        time.Time // ゼロ値 = 未抽出
	SiteName        string
	SiteCount       string
	Adult           int
	Child           int
	Infant          int
	Name            string
	Phone           string
	Email           string
	Remarks         string
	TotalPrice      string
	Status          Status
	NextDaySent     string // 南京錠送信済みフラグ（リマインダー側が所有）
	DayBeforeSent   string // 前日案内送信済みフラグ（リマインダー側が所有）
	CalendarEventID string // カレンダー連携側が所有
}

// Key は「予約元ラベル:予約ID」の複合キーを返します
// 同一プラットフォーム内で予約IDは一意、プラットフォームを跨いだ衝突はこのキーで防ぎます
func (r Reservation) Key() string {
	return ReservationKey(r.Platform.Label(), r.ReservationID)
}

// ReservationKey はシート上の値から複合キーを組み立てます
func ReservationKey(platformLabel, reservationID string) string {
	if platformLabel == "" {
		return reservationID
	}
	return platformLabel + ":" + reservationID
}

// IsValid は行として保存してよい最低条件（チェックイン日時と名前）を満たすか返します
func (r Reservation) IsValid() bool {
	return !r.CheckIn.IsZero() && r.Name != ""
}
