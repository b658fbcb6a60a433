package extract

import (
	"regexp"
	"time"

	"github.com/saigo112/gas-camping-reservation/internal/model"
)

// なっぷの予約確定メール用パターン
// 「ラベル（全角空白詰め） : 値」という桁揃えテンプレートが前提です
var (
	reNapID        = regexp.MustCompile(`予約詳細番号[^:：]*[:：]\s*([A-Z0-9-]+)`)
	reNapSubjectID = regexp.MustCompile(`([A-Z0-9]+-\d+)`)
	reNapReserved  = regexp.MustCompile(`予約日時[^:：]*[:：]\s*(\d{4})年(\d{2})月(\d{2})日[^0-9]*(\d{1,2})時(\d{2})分`)
	reNapCheckIn   = regexp.MustCompile(`チェックイン日時[^:：]*[:：]\s*(\d{4})年(\d{2})月(\d{2})日[^0-9]*(\d{1,2})時(\d{2})分`)
	reNapCheckOut  = regexp.MustCompile(`チェックアウト日時[^:：]*[:：]\s*(\d{4})年(\d{2})月(\d{2})日[^0-9]*(\d{1,2})時(\d{2})分`)
	reNapSiteName  = regexp.MustCompile(`予約施設[^:：]*[:：]\s*([^\n]+)`)
	reNapAdult     = regexp.MustCompile(`人数[^\n]*大人\s*(\d+)\s*人`)
	reNapChild     = regexp.MustCompile(`人数[^\n]*子供\s*(\d+)\s*人`)
	reNapInfant    = regexp.MustCompile(`人数[^\n]*幼児\s*(\d+)`)
	reNapName      = regexp.MustCompile(`代表者氏名[^:：]*[:：]\s*([^\n]+)`)
	reNapPhone     = regexp.MustCompile(`代表者連絡先[^:：]*[:：]\s*(0\d{9,10})`)
	reNapEmail     = regexp.MustCompile(`お客様のメールアドレス[^:：]*[:：]\s*\[?([^\]\s\n]+@[^\]\s\n]+)\]?`)
	reNapRemarks   = regexp.MustCompile(`■\s*ご要望\s*\n\s*([^\n]+)`)
	reNapPrice     = regexp.MustCompile(`利用料総額[^:：]*[:：]\s*([￥]?\s*[\d,]+円?)`)
)

// napReservationID は本文の予約詳細番号、なければ件名中の番号を使います
func napReservationID(subject, body string) string {
	if id := pick(body, reNapID); id != "" {
		return id
	}
	return pick(subject, reNapSubjectID)
}

func parseNap(body string, msgDate time.Time) model.Reservation {
	// 予約日時はメール本文の記載を優先する（プラットフォームが確定した日時）
	receivedAt := msgDate
	if m := reNapReserved.FindStringSubmatch(body); m != nil {
		receivedAt = parseJPDateTime(m)
	}

	var checkIn, checkOut time.Time
	if m := reNapCheckIn.FindStringSubmatch(body); m != nil {
		checkIn = parseJPDateTime(m)
	}
	if m := reNapCheckOut.FindStringSubmatch(body); m != nil {
		checkOut = parseJPDateTime(m)
	}

	return model.Reservation{
		Platform:   model.PlatformNap,
		ReceivedAt: receivedAt,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		SiteName:   pick(body, reNapSiteName),
		// なっぷにはサイト数の欄がない
		SiteCount:  "",
		Adult:      toNumOrZero(pick(body, reNapAdult)),
		Child:      toNumOrZero(pick(body, reNapChild)),
		Infant:     toNumOrZero(pick(body, reNapInfant)),
		Name:       pick(body, reNapName),
		Phone:      pick(body, reNapPhone),
		Email:      pick(body, reNapEmail),
		Remarks:    pick(body, reNapRemarks),
		TotalPrice: pick(body, reNapPrice),
	}
}
