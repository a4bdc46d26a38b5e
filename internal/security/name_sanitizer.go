// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NameSanitizerService はユーザー入力の表示名・スクワッド名をサニタイズし、
// 管理ダッシュボードへの格納型XSSからシステムを保護する。
// bluemondayのStrictPolicyにより、マークアップは一切通過させない。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService は名前のサニタイズ機能のインターフェースを定義する。
// スクワッド作成時・参加時の名前保存前に使用される。
type NameSanitizerService interface {
	// SanitizeName は名前からすべてのHTMLマークアップを除去し、
	// 前後の空白を取り除いたプレーンテキストを返す。
	// タグのみで構成された入力は空文字列になる。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeName(raw string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicy（全タグ除去）を使用する。名前はプレーンテキストとして
// 扱うため、許可するマークアップは存在しない。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeName は名前からすべてのHTMLマークアップを除去する。
// StrictPolicyは残ったテキストをエンティティ参照にエスケープするため、
// 保存用のプレーンテキストに戻すためにアンエスケープする。
// 出力はダッシュボードのテンプレート側で改めてエスケープされる。
func (s *nameSanitizer) SanitizeName(raw string) string {
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
