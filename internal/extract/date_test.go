package extract

import (
	"testing"
	"time"

	"github.com/saigo112/gas-camping-reservation/internal/model"
)

func TestParsePeriodPart(t *testing.T) {
	base := time.Date(2026, 3, 1, 14, 0, 0, 0, model.JST)
	tests := []struct {
		name string
		s    string
		base time.Time
		want time.Time
	}{
		{
			name: "日付と時刻",
			s:    "2026/03/01 14:00",
			want: time.Date(2026, 3, 1, 14, 0, 0, 0, model.JST),
		},
		{
			name: "和暦風の表記",
			s:    "2026年3月1日　14:00",
			want: time.Date(2026, 3, 1, 14, 0, 0, 0, model.JST),
		},
		{
			name: "ハイフン区切り",
			s:    "2026-03-01 14:00",
			want: time.Date(2026, 3, 1, 14, 0, 0, 0, model.JST),
		},
		{
			name: "日付のみは0時",
			s:    "2026/03/01",
			want: time.Date(2026, 3, 1, 0, 0, 0, 0, model.JST),
		},
		{
			name: "時刻のみはbaseの日付",
			s:    "10:00",
			base: base,
			want: time.Date(2026, 3, 1, 10, 0, 0, 0, model.JST),
		},
		{
			name: "baseなしの時刻のみはゼロ値",
			s:    "10:00",
		},
		{
			name: "空文字はゼロ値",
			s:    "",
		},
		{
			name: "解釈できない文字列はゼロ値",
			s:    "未定",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parsePeriodPart(tt.s, tt.base)
			if !got.Equal(tt.want) {
				t.Errorf("parsePeriodPart(%q) = %v, want %v", tt.s, got, tt.want)
			}
		})
	}
}

func TestToNumOrZero(t *testing.T) {
	tests := []struct {
		name string
		s    string
		want int
	}{
		{name: "半角数字", s: "2", want: 2},
		{name: "全角数字は畳み込む", s: "２", want: 2},
		{name: "単位付き", s: "3名", want: 3},
		{name: "数字なしは0", s: "名", want: 0},
		{name: "空文字は0", s: "", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toNumOrZero(tt.s); got != tt.want {
				t.Errorf("toNumOrZero(%q) = %d, want %d", tt.s, got, tt.want)
			}
		})
	}
}
