package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/saigo112/gas-camping-reservation/internal/model"
)

// 楽天トラベルキャンプの予約確定メール用パターン
// テンプレートの揺れ（全角コロン・余分な空白・行頭の▼）を許容します
var (
	reRakutenID        = regexp.MustCompile(`(?i)(?:予約ID|予約ＩＤ)[^\S\r\n]*[:：]?\s*([A-Z0-9-]+)`)
	reRakutenPeriod    = regexp.MustCompile(`(?i)[▼\s]*(宿泊期間|利用日)[^\S\r\n]*[:：]?\s*([0-9/.\-年月日 　:\n～~]+)`)
	reRakutenSiteName  = regexp.MustCompile(`(?i)サイト名[^\S\r\n]*[:：]?\s*([^\n<]+)`)
	reRakutenSiteCount = regexp.MustCompile(`(?i)予約サイト数[^\S\r\n]*[:：]?\s*(\d+)`)
	// 大人・子供・幼児が同じ区画に並ぶ前提の一括パターン。
	// 別々の行グループに分かれたテンプレート向けに個別パターンも持つ
	reRakutenPeople = regexp.MustCompile(`(?si)大人[^\d]*(\d+)\s*名.*?子供[^\d]*(\d+)\s*名.*?幼児[^\d]*(\d+)\s*名`)
	reRakutenAdult  = regexp.MustCompile(`大人[^\d]*(\d+)\s*名`)
	reRakutenChild  = regexp.MustCompile(`子供[^\d]*(\d+)\s*名`)
	reRakutenInfant = regexp.MustCompile(`幼児[^\d]*(\d+)\s*名`)
	reRakutenName   = regexp.MustCompile(`(?i)お名前[^\S\r\n]*[:：]\s*([^\n<]+)`)
	reRakutenPhone  = regexp.MustCompile(`電話番号[^\S\r\n]*[:：]\s*(0\d{9,10})`)
	reRakutenEmail  = regexp.MustCompile(`メールアドレス[^\S\r\n]*[:：]\s*([\w._%+\-]+@[\w.\-]+\.[A-Za-z]{2,})`)
	// 備考は次のセクション見出し・空行・本文末尾のいずれかまで
	reRakutenRemarks = regexp.MustCompile(`(?is)[▼\s]*備考[^\S\n]*[:：]?[^\S\n]*(.+?)(?:\n[^\S\n]*[▼\s]*(?:利用料金|お支払い済み料金|サイト名|予約者情報|予約詳細)|\n\n|$)`)
	reRakutenPrice   = regexp.MustCompile(`(?i)(?:利用料金|合計料金|お支払い済み料金)[^\d￥]*([￥]?\s*[\d,]+)`)
	rePeriodSep      = regexp.MustCompile(`[～~]`)
	reEndHasYear     = regexp.MustCompile(`\d{4}\s*[/年]`)
	reEndHasMonthDay = regexp.MustCompile(`\d{1,2}\s*[/月]\s*\d{1,2}`)
)

func rakutenReservationID(body string) string {
	return pick(body, reRakutenID)
}

func parseRakuten(body string, msgDate time.Time) model.Reservation {
	body = strings.ReplaceAll(body, "\r", "")

	checkIn, checkOut := rakutenPeriod(body)

	var adult, child, infant int
	if m := reRakutenPeople.FindStringSubmatch(body); m != nil {
		adult = toNumOrZero(m[1])
		child = toNumOrZero(m[2])
		infant = toNumOrZero(m[3])
	} else {
		adult = toNumOrZero(pick(body, reRakutenAdult))
		child = toNumOrZero(pick(body, reRakutenChild))
		infant = toNumOrZero(pick(body, reRakutenInfant))
	}

	var price string
	if m := reRakutenPrice.FindStringSubmatch(body); m != nil {
		price = strings.Join(strings.Fields(m[1]), "")
	}

	return model.Reservation{
		Platform:   model.PlatformRakuten,
		ReceivedAt: msgDate,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		SiteName:   pick(body, reRakutenSiteName),
		SiteCount:  pick(body, reRakutenSiteCount),
		Adult:      adult,
		Child:      child,
		Infant:     infant,
		Name:       pick(body, reRakutenName),
		Phone:      pick(body, reRakutenPhone),
		Email:      pick(body, reRakutenEmail),
		Remarks:    pick(body, reRakutenRemarks),
		TotalPrice: price,
	}
}

// rakutenPeriod は「宿泊期間」「利用日」欄からチェックイン/アウトを推定します
//   - 利用日（日帰り）はチェックアウトを同日18:00に固定
//   - 宿泊期間の右側に日付があればそのまま解釈
//   - 右側が時刻のみの場合は同日の時刻とし、チェックインを過ぎていなければ
//     1泊とみなして翌日に繰り上げる（「14:00～10:00」のような表記）
func rakutenPeriod(body string) (checkIn, checkOut time.Time) {
	m := reRakutenPeriod.FindStringSubmatch(body)
	if m == nil {
		return
	}
	kind := strings.TrimSpace(m[1])
	raw := strings.TrimSpace(strings.ReplaceAll(m[2], "\r", ""))

	var parts []string
	for _, p := range rePeriodSep.Split(raw, -1) {
		p = strings.TrimSpace(strings.ReplaceAll(p, "\n", " "))
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return
	}

	checkIn = parsePeriodPart(parts[0], time.Time{})

	switch kind {
	case "利用日":
		if !checkIn.IsZero() {
			checkOut = time.Date(checkIn.Year(), checkIn.Month(), checkIn.Day(), 18, 0, 0, 0, model.JST)
		}
	case "宿泊期間":
		if !checkIn.IsZero() && len(parts) > 1 {
			endRaw := parts[1]
			hasDate := reEndHasYear.MatchString(endRaw) || reEndHasMonthDay.MatchString(endRaw)
			if hasDate {
				checkOut = parsePeriodPart(endRaw, time.Time{})
			} else {
				checkOut = parsePeriodPart(endRaw, checkIn)
				if !checkOut.IsZero() && !checkOut.After(checkIn) {
					checkOut = checkOut.AddDate(0, 0, 1)
				}
			}
		}
	}
	return
}
