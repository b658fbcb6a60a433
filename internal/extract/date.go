// Package extract はプラットフォーム別の予約メール本文から
// 予約レコードを正規表現で抽出します。フィールドごとに独立して抽出し、
// 取れないフィールドはゼロ値のままにする（全体を失敗させない）方針です。
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/width"

	"github.com/saigo112/gas-camping-reservation/internal/model"
)

var (
	reDateTimeFull = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2}) (\d{1,2}):(\d{2})$`)
	reDateOnly     = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})$`)
	reTimeOnly     = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// parseJPDateTime は「2026年02月14日(土) 13時00分」形式の部分一致5グループを時刻にします
func parseJPDateTime(m []string) time.Time {
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, model.JST)
}

// parsePeriodPart は宿泊期間・利用日欄の片側を時刻にします
// 「2026/03/01 14:00」「2026年3月1日 14:00」「2026/03/01」のほか、
// base が有効なら「10:00」のような時刻のみの表記も解釈します
// 解釈できない場合はゼロ値を返します
func parsePeriodPart(s string, base time.Time) time.Time {
	if s == "" {
		return time.Time{}
	}
	// 全角空白・和暦風の区切りをスラッシュ区切りに寄せる
	r := strings.NewReplacer("　", " ", "年", "/", "月", "/", "日", "", ".", "/", "-", "/")
	norm := strings.Join(strings.Fields(r.Replace(s)), " ")

	if m := reDateTimeFull.FindStringSubmatch(norm); m != nil {
		return parseJPDateTime(m)
	}
	if m := reDateOnly.FindStringSubmatch(norm); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, model.JST)
	}
	if m := reTimeOnly.FindStringSubmatch(norm); m != nil && !base.IsZero() {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		b := base.In(model.JST)
		return time.Date(b.Year(), b.Month(), b.Day(), hour, minute, 0, 0, model.JST)
	}
	return time.Time{}
}

var reNonDigit = regexp.MustCompile(`[^0-9]`)

// toNumOrZero は抽出文字列を非負整数にします。全角数字は半角へ畳み込み、
// 数値にならないものは 0 を返します
func toNumOrZero(s string) int {
	folded := width.Fold.String(s)
	digits := reNonDigit.ReplaceAllString(folded, "")
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// pick は最初のキャプチャグループをトリムして返します。マッチしなければ空文字です
func pick(s string, re *regexp.Regexp) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	for _, g := range m[1:] {
		if g != "" {
			return strings.TrimSpace(g)
		}
	}
	return ""
}
