package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// CalendarEvent はカレンダーに登録する予定1件です
type CalendarEvent struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// Calendar はカレンダーサービスへの操作境界です
type Calendar interface {
	// CreateEvent は予定を登録してイベントIDを返します
	CreateEvent(ctx context.Context, event CalendarEvent) (string, error)
	// DeleteEvent は予定を削除します。既に消えている場合も成功扱いです
	DeleteEvent(ctx context.Context, eventID string) error
}

// CalendarConfig はカレンダーAPIの設定です
type CalendarConfig struct {
	BaseURL    string
	CalendarID string
	Token      string
}

// HTTPCalendar は Calendar のREST実装です
// イベントIDはクライアント側で採番し、PUTで冪等に作成します
type HTTPCalendar struct {
	http       *resty.Client
	calendarID string
}

var _ Calendar = (*HTTPCalendar)(nil)

// NewHTTPCalendar はカレンダーAPIクライアントを作成します
func NewHTTPCalendar(cfg CalendarConfig) *HTTPCalendar {
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(30*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		c.SetAuthToken(cfg.Token)
	}
	return &HTTPCalendar{http: c, calendarID: cfg.CalendarID}
}

type calendarEventBody struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

func (c *HTTPCalendar) CreateEvent(ctx context.Context, event CalendarEvent) (string, error) {
	eventID := uuid.NewString()
	body := calendarEventBody{
		Summary:     event.Title,
		Description: event.Description,
		Start:       event.Start.Format(time.RFC3339),
		End:         event.End.Format(time.RFC3339),
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Put(fmt.Sprintf("/calendars/%s/events/%s", c.calendarID, eventID))
	if err != nil {
		return "", fmt.Errorf("カレンダー登録に失敗: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("カレンダー登録に失敗: status=%d body=%s", resp.StatusCode(), resp.String())
	}
	return eventID, nil
}

func (c *HTTPCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/calendars/%s/events/%s", c.calendarID, eventID))
	if err != nil {
		return fmt.Errorf("カレンダー削除に失敗: %w", err)
	}
	// リモート側で既に消えているイベントは成功扱い（無限リトライ防止）
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound && resp.StatusCode() != http.StatusGone {
		return fmt.Errorf("カレンダー削除に失敗: status=%d body=%s", resp.StatusCode(), resp.String())
	}
	return nil
}
