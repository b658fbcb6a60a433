package model

import (
	"strconv"
	"strings"
	"time"
)

// JST は本システム全体で使う固定タイムゾーンです
// メール本文の日時・シート上の日時はすべてこのゾーンの現地時刻として扱います
var JST = time.FixedZone("JST", 9*60*60)

// シートの列名。コア処理は列位置を直接触らず、必ずこの名前経由で参照します
const (
	ColReceivedAt      = "予約日時"
	ColReservationID   = "予約ID"
	ColPlatform        = "予約元"
	ColCheckIn         = "チェックイン日時"
	ColCheckOut        = "チェックアウト日時"
	ColSiteName        = "サイト名"
	ColSiteCount       = "サイト数"
	ColAdult           = "大人"
	ColChild           = "子供"
	ColInfant          = "幼児"
	ColName            = "名前"
	ColPhone           = "電話番号"
	ColEmail           = "メールアドレス"
	ColRemarks         = "備考"
	ColTotalPrice      = "料金"
	ColStatus          = "ステータス"
	ColNextDaySent     = "南京錠送信済み"
	ColDayBeforeSent   = "前日案内送信済み"
	ColCalendarEventID = "カレンダーイベントID"
)

// SheetColumns は取り込みバッチが保証するヘッダー列の並びです
// 既存シートに不足列があれば末尾に追加されます（既存列は並び替えない）
var SheetColumns = []string{
	ColReceivedAt, ColReservationID, ColPlatform, ColCheckIn, ColCheckOut,
	ColSiteName, ColSiteCount, ColAdult, ColChild, ColInfant, ColName,
	ColPhone, ColEmail, ColRemarks, ColTotalPrice, ColStatus,
	ColNextDaySent, ColDayBeforeSent, ColCalendarEventID,
}

// SheetTimeLayout はシートへ日時を書き込む際の書式です
const SheetTimeLayout = "2006/01/02 15:04"

// FormatSheetTime はシート用の日時文字列を返します。ゼロ値は空文字になります
func FormatSheetTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(JST).Format(SheetTimeLayout)
}

// ParseSheetTime はシート上の日時文字列を読み戻します
// 手修正された行も拾えるよう、いくつかの揺れを許容します
func ParseSheetTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		SheetTimeLayout,
		"2006/1/2 15:04",
		"2006/01/02 15:04:05",
		"2006/01/02",
		"2006/1/2",
	} {
		if t, err := time.ParseInLocation(layout, s, JST); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ToRow は予約1件をヘッダー準拠の行スライスへ変換します
// header に存在しない列は捨て、存在するが値のない列は空文字になります
func (r Reservation) ToRow(header []string) []interface{} {
	row := make([]interface{}, len(header))
	for i := range row {
		row[i] = ""
	}
	set := func(column string, value interface{}) {
		for i, h := range header {
			if h == column {
				row[i] = value
				return
			}
		}
	}
	set(ColReceivedAt, FormatSheetTime(r.ReceivedAt))
	set(ColReservationID, r.ReservationID)
	set(ColPlatform, r.Platform.Label())
	set(ColCheckIn, FormatSheetTime(r.CheckIn))
	set(ColCheckOut, FormatSheetTime(r.CheckOut))
	set(ColSiteName, r.SiteName)
	set(ColSiteCount, r.SiteCount)
	set(ColAdult, strconv.Itoa(r.Adult))
	set(ColChild, strconv.Itoa(r.Child))
	set(ColInfant, strconv.Itoa(r.Infant))
	set(ColName, strings.TrimSpace(r.Name))
	// 電話番号は先頭0落ち防止のため引用符付きで保存する
	if r.Phone != "" {
		set(ColPhone, `"`+strings.TrimSpace(r.Phone)+`"`)
	}
	set(ColEmail, strings.TrimSpace(r.Email))
	set(ColRemarks, r.Remarks)
	set(ColTotalPrice, r.TotalPrice)
	set(ColStatus, string(r.Status))
	set(ColNextDaySent, r.NextDaySent)
	set(ColDayBeforeSent, r.DayBeforeSent)
	set(ColCalendarEventID, r.CalendarEventID)
	return row
}
