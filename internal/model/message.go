package model

import "time"

// InboundMessage は受信メール1通を表します
// メールボックス実装（IMAP等）に依存しない形でスキャン処理へ渡されます
type InboundMessage struct {
	ID      string // メールボックス内で安定な識別子（IMAPならUID）
	From    string // Fromヘッダの生文字列
	Subject string
	Body    string    // text/plain 本文
	Date    time.Time // メールの送信日時
	Tagged  bool      // 処理済みマーカーが付与済みか
}
