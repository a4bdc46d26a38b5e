// Package session はAPIキーによるメンバーセッションの発行と検証を提供する。
package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/squadz/internal/model"
)

// apiKeyPrefix はAPIキーの識別用プレフィックス。
// ログやサポート対応でクレデンシャルの種別を判別しやすくする。
const apiKeyPrefix = "sqz_"

// apiKeyEntropyBytes はAPIキーのエントロピー（バイト数）。256ビット。
const apiKeyEntropyBytes = 32

// Store はメンバーセッションをAPIキーをキーとして保持する。
//
// 並行制御: 全操作がテーブル全体の排他ロックを取る。
// Validateもlast_seenの更新という副作用を持つため読み取りロックは使えない。
// セッションテーブルは小さくすべての操作がO(1)のため、ボトルネックにはならない。
type Store struct {
	mu       sync.Mutex
	sessions map[string]*model.Session // APIキー → セッション

	// nowFuncはテストで時刻を固定するために差し替える
	nowFunc func() time.Time
}

// NewStore はStoreの新しいインスタンスを生成する。
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*model.Session),
		nowFunc:  time.Now,
	}
}

// Create は(メンバー, スクワッド)の組に対して新しいセッションを発行する。
// APIキーは暗号論的乱数256ビットをURL-safe base64でエンコードし、
// sqz_プレフィックスを付与した不透明文字列。
// メンバーあたりのセッション数に制限はない（ログイン/参加のたびに1つ発行）。
func (s *Store) Create(memberID, squadID string, ttl time.Duration) (*model.Session, error) {
	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("APIキーの生成に失敗: %w", err)
	}

	now := s.nowFunc()
	sess := &model.Session{
		SessionID:  uuid.New().String(),
		MemberID:   memberID,
		SquadID:    squadID,
		APIKey:     apiKey,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		LastSeenAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[apiKey] = sess

	clone := *sess
	return &clone, nil
}

// Validate はAPIキーを検証し、有効であればセッションのコピーを返す。
// 存在しないキーにはnilを返す。期限切れのセッションはその場で破棄し、
// 存在しないものとして扱う（遅延失効）。
// 有効な場合はlast_seenを現在時刻に更新するが、作成時に確定した
// 絶対期限（expires_at）は延長しない。
func (s *Store) Validate(apiKey string) *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[apiKey]
	if !ok {
		return nil
	}

	now := s.nowFunc()
	if sess.IsExpired(now) {
		delete(s.sessions, apiKey)
		return nil
	}

	sess.LastSeenAt = now
	clone := *sess
	return &clone
}

// Revoke は1つのセッションを破棄し、存在していたかどうかを返す。
func (s *Store) Revoke(apiKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[apiKey]; !ok {
		return false
	}
	delete(s.sessions, apiKey)
	return true
}

// RevokeMember は指定メンバーの全セッションを破棄し、破棄数を返す。
// メンバーの脱退・除名時のカスケード処理で使用する。
func (s *Store) RevokeMember(memberID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, sess := range s.sessions {
		if sess.MemberID == memberID {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed
}

// CleanupExpired は期限切れの全セッションを掃き出し、削除数を返す。
// 外部の定期スケジューラから呼び出されることを想定している。
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	removed := 0
	for key, sess := range s.sessions {
		if sess.IsExpired(now) {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed
}

// Count は現在保持しているセッション数を返す。メトリクス用。
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// generateAPIKey は暗号論的に安全なAPIキーを生成する。
func generateAPIKey() (string, error) {
	b := make([]byte, apiKeyEntropyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return apiKeyPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}
