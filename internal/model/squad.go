// Package model はドメインモデルを定義する。
package model

import "time"

// Member はスクワッドに所属するメンバーを表す。
// 表示名はスクワッド内で一意（グローバルには一意でない）。
type Member struct {
	MemberID    string
	DisplayName string
	AvatarURL   string // 任意。空文字列は未設定を表す
	JoinedAt    time.Time
	IsLeader    bool
}

// Squad は位置情報を共有するメンバーのグループを表す。
// 参加コード（JoinCode）で人間が共有可能な形で識別される。
type Squad struct {
	SquadID   string
	Name      string
	JoinCode  string
	CreatedAt time.Time
	LeaderID  string
	Members   []Member
	Settings  SquadSettings
}

// SquadSettings はスクワッドごとの共有設定を表す。
type SquadSettings struct {
	IsPublic                   bool
	RequireApproval            bool
	ShareAltitude              bool
	ShareSpeed                 bool
	LocationUpdateIntervalSecs int
}

// DefaultSquadSettings はスクワッド設定のデフォルト値を返す。
// 非公開・承認不要・高度と速度は共有・更新間隔10秒。
func DefaultSquadSettings() SquadSettings {
	return SquadSettings{
		IsPublic:                   false,
		RequireApproval:            false,
		ShareAltitude:              true,
		ShareSpeed:                 true,
		LocationUpdateIntervalSecs: 10,
	}
}

// FindMember はメンバーIDでメンバーを検索する。
// 見つからない場合はnilを返す。
func (s *Squad) FindMember(memberID string) *Member {
	for i := range s.Members {
		if s.Members[i].MemberID == memberID {
			return &s.Members[i]
		}
	}
	return nil
}

// HasDisplayName は指定された表示名を持つメンバーが既に存在するかを返す。
// 完全一致で比較する（大文字小文字や空白の正規化は行わない）。
func (s *Squad) HasDisplayName(name string) bool {
	for i := range s.Members {
		if s.Members[i].DisplayName == name {
			return true
		}
	}
	return false
}
