package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, squad, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeSquadNotFound   = "SQUAD_NOT_FOUND"
	ErrCodeInvalidJoinCode = "INVALID_JOIN_CODE"
	ErrCodeMemberNotFound  = "MEMBER_NOT_FOUND"
	ErrCodeNameTaken       = "NAME_TAKEN"
	ErrCodeNotLeader       = "NOT_LEADER"
	ErrCodeSquadFull       = "SQUAD_FULL"
	ErrCodeInvalidName     = "INVALID_NAME"
	ErrCodeInvalidAvatar   = "INVALID_AVATAR_URL"
)

// NewSquadNotFoundError はスクワッド未検出エラーを生成する。
func NewSquadNotFoundError(squadID string) *APIError {
	return &APIError{
		Code:     ErrCodeSquadNotFound,
		Message:  fmt.Sprintf("指定されたスクワッドが見つかりません: %s", squadID),
		Category: "squad",
		Action:   "スクワッドIDを確認してください。既に解散している可能性があります。",
	}
}

// NewInvalidJoinCodeError は無効な参加コードエラーを生成する。
func NewInvalidJoinCodeError(code string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidJoinCode,
		Message:  fmt.Sprintf("参加コードに対応するスクワッドがありません: %s", code),
		Category: "squad",
		Action:   "参加コードを確認してください。スクワッドが解散するとコードは無効になります。",
	}
}

// NewMemberNotFoundError はメンバー未検出エラーを生成する。
func NewMemberNotFoundError(memberID string) *APIError {
	return &APIError{
		Code:     ErrCodeMemberNotFound,
		Message:  fmt.Sprintf("指定されたメンバーが見つかりません: %s", memberID),
		Category: "squad",
		Action:   "メンバーIDを確認してください。",
	}
}

// NewNameTakenError は表示名重複エラーを生成する。
func NewNameTakenError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeNameTaken,
		Message:  fmt.Sprintf("表示名は既に使用されています: %s", name),
		Category: "validation",
		Action:   "別の表示名を指定してください。",
	}
}

// NewNotLeaderError はリーダー権限エラーを生成する。
func NewNotLeaderError() *APIError {
	return &APIError{
		Code:     ErrCodeNotLeader,
		Message:  "この操作はリーダーのみ実行できます。",
		Category: "auth",
		Action:   "スクワッドのリーダーに依頼してください。",
	}
}

// NewSquadFullError はスクワッド定員超過エラーを生成する。
func NewSquadFullError(maxSize int) *APIError {
	return &APIError{
		Code:     ErrCodeSquadFull,
		Message:  fmt.Sprintf("スクワッドが定員（%d人）に達しています。", maxSize),
		Category: "squad",
		Action:   "既存メンバーが脱退するか、新しいスクワッドを作成してください。",
	}
}

// NewInvalidNameError は無効な表示名エラーを生成する。
func NewInvalidNameError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidName,
		Message:  "表示名が空か、使用できない文字のみで構成されています。",
		Category: "validation",
		Action:   "1文字以上の表示名を指定してください。",
	}
}

// NewInvalidAvatarError は無効なアバターURLエラーを生成する。
func NewInvalidAvatarError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAvatar,
		Message:  fmt.Sprintf("アバターURLが無効です: %s", reason),
		Category: "validation",
		Action:   "公開されているhttps URLを指定してください。",
	}
}
