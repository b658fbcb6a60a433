package repository

import (
	"context"
	"fmt"

	gomail "gopkg.in/gomail.v2"
)

// OutboundMail は送信メール1通です
type OutboundMail struct {
	To          string
	Subject     string
	Body        string
	Attachments []string // 添付ファイルのパス
}

// MailSender は送信メール側の操作境界です
type MailSender interface {
	Send(ctx context.Context, mail OutboundMail) error
}

// SMTPConfig はSMTP送信の設定です
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // 送信元アドレス
	FromName string // 表示名
	ReplyTo  string
}

// SMTPSender は MailSender のgomail実装です
type SMTPSender struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

var _ MailSender = (*SMTPSender)(nil)

// NewSMTPSender はSMTP送信クライアントを作成します
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *SMTPSender) Send(ctx context.Context, mail OutboundMail) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.cfg.From, s.cfg.FromName)
	m.SetHeader("To", mail.To)
	if s.cfg.ReplyTo != "" {
		m.SetHeader("Reply-To", s.cfg.ReplyTo)
	}
	m.SetHeader("Subject", mail.Subject)
	m.SetBody("text/plain", mail.Body)
	for _, path := range mail.Attachments {
		m.Attach(path)
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("メール送信に失敗 to=%s: %w", mail.To, err)
	}
	return nil
}
