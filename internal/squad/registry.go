// Package squad はスクワッドとメンバーシップの管理を提供する。
// スクワッドの作成・参加・脱退・解散と参加コードの発行を担当する。
package squad

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/squadz/internal/model"
)

// joinCodeAlphabet は参加コードに使用する32文字のアルファベット。
// 0/O、1/I のような紛らわしい文字を除外している。
const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// joinCodeLength は参加コードの文字数。
const joinCodeLength = 6

// maxJoinCodeRetries は参加コード生成の衝突リトライ上限。
// 32^6通りのコード空間に対して現実的なスクワッド数では衝突確率は
// 無視できるため、この上限に到達することは実質的にない。
const maxJoinCodeRetries = 100

// NameSanitizer は表示名・スクワッド名のサニタイズに必要なインターフェース。
// security.NameSanitizerServiceの部分集合として定義する。
type NameSanitizer interface {
	// SanitizeName は名前からマークアップを除去し、前後の空白を取り除く。
	SanitizeName(raw string) string
}

// RegistryConfig はRegistryの設定。
type RegistryConfig struct {
	MaxSquadSize int // スクワッドの最大メンバー数
}

// Registry はスクワッドとメンバーシップを管理する。
// SquadとMemberレコードの唯一の所有者であり、他のストアは
// 非正規化コピーのみを保持する。
//
// 並行制御: squads/joinCodesの両マップを単一のRWMutexで保護する。
// 読み取り（GetSquad, GetSquadByCode, ListSquads）は並行実行できるが、
// 変更操作は操作全体で排他ロックを取る。スクワッド単位のロックは持たない。
type Registry struct {
	mu        sync.RWMutex
	squads    map[string]*model.Squad
	joinCodes map[string]string // 参加コード → スクワッドID

	sanitizer NameSanitizer
	config    RegistryConfig

	// nowFuncはテストで時刻を固定するために差し替える
	nowFunc func() time.Time
}

// NewRegistry はRegistryの新しいインスタンスを生成する。
// MaxSquadSizeが0以下の場合はデフォルト値50を使用する。
func NewRegistry(sanitizer NameSanitizer, config RegistryConfig) *Registry {
	if config.MaxSquadSize <= 0 {
		config.MaxSquadSize = 50
	}
	return &Registry{
		squads:    make(map[string]*model.Squad),
		joinCodes: make(map[string]string),
		sanitizer: sanitizer,
		config:    config,
		nowFunc:   time.Now,
	}
}

// CreateSquad は新しいスクワッドを作成し、リーダーを唯一のメンバーとして登録する。
// 一意な参加コードを発行し、設定が省略された場合はデフォルト設定を適用する。
// 戻り値はスクワッドのスナップショットとリーダーのメンバーID。
func (r *Registry) CreateSquad(name, leaderName, avatarURL string, settings *model.SquadSettings) (*model.Squad, string, error) {
	name = r.sanitizer.SanitizeName(name)
	leaderName = r.sanitizer.SanitizeName(leaderName)
	if name == "" || leaderName == "" {
		return nil, "", model.NewInvalidNameError()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	joinCode, err := r.generateJoinCode()
	if err != nil {
		return nil, "", err
	}

	now := r.nowFunc()
	squadID := uuid.New().String()
	leaderID := uuid.New().String()

	squad := &model.Squad{
		SquadID:   squadID,
		Name:      name,
		JoinCode:  joinCode,
		CreatedAt: now,
		LeaderID:  leaderID,
		Members: []model.Member{
			{
				MemberID:    leaderID,
				DisplayName: leaderName,
				AvatarURL:   avatarURL,
				JoinedAt:    now,
				IsLeader:    true,
			},
		},
		Settings: resolveSettings(settings),
	}

	r.squads[squadID] = squad
	r.joinCodes[joinCode] = squadID

	return cloneSquad(squad), leaderID, nil
}

// GetSquad はスクワッドIDでスクワッドを取得する。
// 見つからない場合はnilを返す。
func (r *Registry) GetSquad(squadID string) *model.Squad {
	r.mu.RLock()
	defer r.mu.RUnlock()

	squad, ok := r.squads[squadID]
	if !ok {
		return nil
	}
	return cloneSquad(squad)
}

// GetSquadByCode は参加コードでスクワッドを取得する。
// コードに対応する存続中のスクワッドがない場合はnilを返す。
func (r *Registry) GetSquadByCode(joinCode string) *model.Squad {
	r.mu.RLock()
	defer r.mu.RUnlock()

	squadID, ok := r.joinCodes[joinCode]
	if !ok {
		return nil
	}
	squad, ok := r.squads[squadID]
	if !ok {
		return nil
	}
	return cloneSquad(squad)
}

// ListSquads は全スクワッドのスナップショットを返す。
// フィルタリングやページネーションは行わない（管理ダッシュボード用）。
func (r *Registry) ListSquads() []model.Squad {
	r.mu.RLock()
	defer r.mu.RUnlock()

	squads := make([]model.Squad, 0, len(r.squads))
	for _, squad := range r.squads {
		squads = append(squads, *cloneSquad(squad))
	}
	return squads
}

// JoinSquad は参加コードを使ってスクワッドに新しいメンバーを追加する。
// 表示名がスクワッド内で重複する場合はNAME_TAKEN、
// コードが無効な場合はINVALID_JOIN_CODE、
// 定員に達している場合はSQUAD_FULLを返す。
// 成功時は更新後のスクワッドスナップショットと新メンバーIDを返す。
func (r *Registry) JoinSquad(joinCode, displayName, avatarURL string) (*model.Squad, string, error) {
	displayName = r.sanitizer.SanitizeName(displayName)
	if displayName == "" {
		return nil, "", model.NewInvalidNameError()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	squadID, ok := r.joinCodes[joinCode]
	if !ok {
		return nil, "", model.NewInvalidJoinCodeError(joinCode)
	}
	squad, ok := r.squads[squadID]
	if !ok {
		return nil, "", model.NewSquadNotFoundError(squadID)
	}

	if len(squad.Members) >= r.config.MaxSquadSize {
		return nil, "", model.NewSquadFullError(r.config.MaxSquadSize)
	}
	if squad.HasDisplayName(displayName) {
		return nil, "", model.NewNameTakenError(displayName)
	}

	memberID := uuid.New().String()
	squad.Members = append(squad.Members, model.Member{
		MemberID:    memberID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		JoinedAt:    r.nowFunc(),
		IsLeader:    false,
	})

	return cloneSquad(squad), memberID, nil
}

// LeaveResult は脱退操作の結果を表す。
// 上位レイヤーがセッション失効と位置情報削除のカスケードを
// 実行するために必要な情報を含む。
type LeaveResult struct {
	SquadDeleted     bool     // リーダー脱退によりスクワッド全体が解散したか
	RemovedMemberIDs []string // 除去されたメンバーのID（解散時は全メンバー）
}

// LeaveSquad はメンバーをスクワッドから脱退させる。
// 脱退するメンバーがリーダーの場合、スクワッド全体と参加コードを
// アトミックに削除する（リーダー継承は行わない）。
// それ以外の場合は該当メンバーのみを除去する。
func (r *Registry) LeaveSquad(squadID, memberID string) (*LeaveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	squad, ok := r.squads[squadID]
	if !ok {
		return nil, model.NewSquadNotFoundError(squadID)
	}

	idx := -1
	for i := range squad.Members {
		if squad.Members[i].MemberID == memberID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, model.NewMemberNotFoundError(memberID)
	}

	// リーダー脱退はスクワッド解散を意味する
	if squad.Members[idx].IsLeader {
		removed := memberIDs(squad.Members)
		delete(r.joinCodes, squad.JoinCode)
		delete(r.squads, squadID)
		return &LeaveResult{SquadDeleted: true, RemovedMemberIDs: removed}, nil
	}

	squad.Members = append(squad.Members[:idx], squad.Members[idx+1:]...)
	return &LeaveResult{SquadDeleted: false, RemovedMemberIDs: []string{memberID}}, nil
}

// DeleteSquad はスクワッドを解散する。リーダーのみ実行できる。
// 参加コードは解放され、以後の再利用が可能になる。
// 戻り値は解散時点の全メンバーID（カスケード処理用）。
func (r *Registry) DeleteSquad(squadID, requestingMemberID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	squad, ok := r.squads[squadID]
	if !ok {
		return nil, model.NewSquadNotFoundError(squadID)
	}
	if squad.LeaderID != requestingMemberID {
		return nil, model.NewNotLeaderError()
	}

	removed := memberIDs(squad.Members)
	delete(r.joinCodes, squad.JoinCode)
	delete(r.squads, squadID)
	return removed, nil
}

// Count は存続中のスクワッド数を返す。メトリクス用。
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.squads)
}

// generateJoinCode は一意な6文字の参加コードを生成する。
// 衝突した場合はリトライし、上限回数を超えた場合はエラーを返す。
// 呼び出し側がr.muを保持していること。
func (r *Registry) generateJoinCode() (string, error) {
	for i := 0; i < maxJoinCodeRetries; i++ {
		code, err := randomJoinCode()
		if err != nil {
			return "", fmt.Errorf("参加コードの生成に失敗: %w", err)
		}
		if _, taken := r.joinCodes[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("参加コードの生成が%d回連続で衝突しました", maxJoinCodeRetries)
}

// randomJoinCode はアルファベットから一様に6文字を抽選する。
func randomJoinCode() (string, error) {
	buf := make([]byte, joinCodeLength)
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// resolveSettings は与えられた設定またはデフォルト設定を返す。
func resolveSettings(settings *model.SquadSettings) model.SquadSettings {
	if settings == nil {
		return model.DefaultSquadSettings()
	}
	return *settings
}

// cloneSquad はスクワッドのディープコピーを返す。
// ロック解放後に呼び出し側が安全に参照できるスナップショットを提供する。
func cloneSquad(s *model.Squad) *model.Squad {
	clone := *s
	clone.Members = make([]model.Member, len(s.Members))
	copy(clone.Members, s.Members)
	return &clone
}

// memberIDs はメンバーのIDスライスを返す。
func memberIDs(members []model.Member) []string {
	ids := make([]string, len(members))
	for i := range members {
		ids[i] = members[i].MemberID
	}
	return ids
}
