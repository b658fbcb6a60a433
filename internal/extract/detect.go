package extract

import (
	"strings"
	"time"

	"github.com/saigo112/gas-camping-reservation/internal/model"
)

// Rule はプラットフォーム1つ分の判定条件です（設定から注入される）
type Rule struct {
	Platform       model.Platform
	From           string // 送信元アドレスの部分一致文字列
	ConfirmSubject string // 予約確定メールの件名部分一致
	CancelSubject  string // キャンセルメールの件名部分一致
}

// DetectPlatform は From ヘッダの部分一致で最初に合致したルールを返します
// どれにも合致しないメールは対象外（エラーではない）です
func DetectPlatform(from string, rules []Rule) (Rule, bool) {
	for _, rule := range rules {
		if rule.From != "" && strings.Contains(from, rule.From) {
			return rule, true
		}
	}
	return Rule{}, false
}

// IsConfirm は件名が予約確定メールかどうかを返します
func (r Rule) IsConfirm(subject string) bool {
	return r.ConfirmSubject != "" && strings.Contains(subject, r.ConfirmSubject)
}

// IsCancel は件名がキャンセルメールかどうかを返します
func (r Rule) IsCancel(subject string) bool {
	return r.CancelSubject != "" && strings.Contains(subject, r.CancelSubject)
}

// ReservationID は本文（なっぷは件名も）から予約IDを抽出します
func ReservationID(p model.Platform, subject, body string) string {
	switch p {
	case model.PlatformRakuten:
		return rakutenReservationID(body)
	case model.PlatformNap:
		return napReservationID(subject, body)
	default:
		return ""
	}
}

// Parse はプラットフォームに応じた抽出関数で予約レコードを組み立てます
// 呼び出し側は Reservation.IsValid で採否を判定します
func Parse(p model.Platform, subject, body string, msgDate time.Time) model.Reservation {
	switch p {
	case model.PlatformRakuten:
		return parseRakuten(body, msgDate)
	case model.PlatformNap:
		return parseNap(body, msgDate)
	default:
		return model.Reservation{}
	}
}
