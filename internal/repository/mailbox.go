package repository

import (
	"context"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset" // ISO-2022-JP等の日本語メール対応
	"github.com/emersion/go-message/mail"

	"github.com/saigo112/gas-camping-reservation/internal/model"
)

// Mailbox は受信メール側の操作境界です
// 検索は「送信元アドレスのいずれか」かつ「期間内」。処理済みマーカーの
// 付与と参照もここが担います
type Mailbox interface {
	// Search は senders のいずれかから since 以降に届いたメールを返します（最大 max 件）
	Search(ctx context.Context, senders []string, since time.Time, max int) ([]model.InboundMessage, error)
	// Tag は処理済みマーカーを付与します。失敗しても取り込み自体は巻き戻しません
	Tag(ctx context.Context, messageIDs []string) error
	Close() error
}

// IMAPConfig はIMAP接続の設定です
type IMAPConfig struct {
	Addr     string // host:993
	Username string
	Password string
	Folder   string // 通常 INBOX
	Keyword  string // 処理済みマーカーに使うIMAPキーワード
}

// IMAPMailbox は Mailbox のIMAP実装です
type IMAPMailbox struct {
	cfg    IMAPConfig
	client *client.Client
}

var _ Mailbox = (*IMAPMailbox)(nil)

// NewIMAPMailbox は接続してフォルダを選択します
func NewIMAPMailbox(cfg IMAPConfig) (*IMAPMailbox, error) {
	c, err := client.DialTLS(cfg.Addr, nil)
	if err != nil {
		return nil, fmt.Errorf("IMAP接続に失敗 %s: %w", cfg.Addr, err)
	}
	if err := c.Login(cfg.Username, cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("IMAPログインに失敗: %w", err)
	}
	folder := cfg.Folder
	if folder == "" {
		folder = "INBOX"
	}
	if _, err := c.Select(folder, false); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("フォルダ選択に失敗 %s: %w", folder, err)
	}
	return &IMAPMailbox{cfg: cfg, client: c}, nil
}

func (m *IMAPMailbox) Close() error {
	return m.client.Logout()
}

func (m *IMAPMailbox) Search(ctx context.Context, senders []string, since time.Time, max int) ([]model.InboundMessage, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	if or := fromCriteria(senders); or != nil {
		criteria.Or = or.Or
		criteria.Header = or.Header
	}

	uids, err := m.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("IMAP検索に失敗: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}
	// UIDは昇順で返る。上限を超える場合は新しい側を残す
	if max > 0 && len(uids) > max {
		uids = uids[len(uids)-max:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid, section.FetchItem()}

	ch := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- m.client.UidFetch(seqset, items, ch)
	}()

	var messages []model.InboundMessage
	for msg := range ch {
		if msg.Envelope == nil {
			continue
		}
		inbound := model.InboundMessage{
			ID:      strconv.FormatUint(uint64(msg.Uid), 10),
			From:    formatAddresses(msg.Envelope.From),
			Subject: msg.Envelope.Subject,
			Date:    msg.Envelope.Date,
			Tagged:  hasFlag(msg.Flags, m.cfg.Keyword),
		}
		if r := msg.GetBody(section); r != nil {
			inbound.Body = plainTextBody(r)
		}
		messages = append(messages, inbound)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("IMAP取得に失敗: %w", err)
	}
	return messages, nil
}

func (m *IMAPMailbox) Tag(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	seqset := new(imap.SeqSet)
	for _, id := range messageIDs {
		uid, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			return fmt.Errorf("不正なメッセージID %q: %w", id, err)
		}
		seqset.AddNum(uint32(uid))
	}
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := m.client.UidStore(seqset, item, []interface{}{m.cfg.Keyword}, nil); err != nil {
		return fmt.Errorf("処理済みマーカーの付与に失敗: %w", err)
	}
	return nil
}

// fromCriteria は From ヘッダのOR条件を組み立てます
func fromCriteria(senders []string) *imap.SearchCriteria {
	var acc *imap.SearchCriteria
	for _, sender := range senders {
		if sender == "" {
			continue
		}
		c := imap.NewSearchCriteria()
		c.Header = textproto.MIMEHeader{"From": {sender}}
		if acc == nil {
			acc = c
			continue
		}
		parent := imap.NewSearchCriteria()
		parent.Or = [][2]*imap.SearchCriteria{{acc, c}}
		acc = parent
	}
	return acc
}

func formatAddresses(addrs []*imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.PersonalName != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.PersonalName, a.Address()))
		} else {
			parts = append(parts, a.Address())
		}
	}
	return strings.Join(parts, ", ")
}

func hasFlag(flags []string, keyword string) bool {
	for _, f := range flags {
		if f == keyword {
			return true
		}
	}
	return false
}

// plainTextBody はMIMEメッセージから最初の text/plain パートを取り出します
func plainTextBody(r io.Reader) string {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return ""
	}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		if h, ok := p.Header.(*mail.InlineHeader); ok {
			ct, _, _ := h.ContentType()
			if ct == "" || ct == "text/plain" {
				b, err := io.ReadAll(p.Body)
				if err != nil {
					return ""
				}
				return string(b)
			}
		}
	}
	return ""
}
