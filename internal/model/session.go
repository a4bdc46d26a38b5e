package model

import "time"

// Session は(メンバー, スクワッド)の組に紐づくログインセッションを表す。
// APIKeyはBearer認証に使用する不透明なクレデンシャル文字列。
// ExpiresAtは作成時に確定する絶対期限で、以降延長されない。
// LastSeenAtは検証成功のたびに更新される（観測用であり期限には影響しない）。
type Session struct {
	SessionID  string
	MemberID   string
	SquadID    string
	APIKey     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastSeenAt time.Time
}

// IsExpired はセッションが指定時刻の時点で期限切れかどうかを返す。
// ExpiresAtちょうどの時刻で失効する（有効なのはExpiresAtの直前まで）。
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
