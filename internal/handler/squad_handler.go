// Package handler はHTTP APIのハンドラー群を提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/squadz/internal/metrics"
	"github.com/hitoshi/squadz/internal/middleware"
	"github.com/hitoshi/squadz/internal/model"
	"github.com/hitoshi/squadz/internal/squad"
)

// SquadRegistryInterface はスクワッドハンドラーが必要とするレジストリのインターフェース。
type SquadRegistryInterface interface {
	// CreateSquad は新しいスクワッドを作成し、リーダーIDを返す。
	CreateSquad(name, leaderName, avatarURL string, settings *model.SquadSettings) (*model.Squad, string, error)
	// GetSquad はスクワッドIDでスクワッドを取得する。見つからない場合はnil。
	GetSquad(squadID string) *model.Squad
	// GetSquadByCode は参加コードでスクワッドを取得する。見つからない場合はnil。
	GetSquadByCode(joinCode string) *model.Squad
	// ListSquads は全スクワッドのスナップショットを返す。
	ListSquads() []model.Squad
	// JoinSquad は参加コードでスクワッドに参加し、新メンバーIDを返す。
	JoinSquad(joinCode, displayName, avatarURL string) (*model.Squad, string, error)
	// LeaveSquad はメンバーを脱退させる。
	LeaveSquad(squadID, memberID string) (*squad.LeaveResult, error)
	// DeleteSquad はスクワッドを解散し、全メンバーIDを返す。
	DeleteSquad(squadID, requestingMemberID string) ([]string, error)
}

// SessionIssuer はセッションの発行・失効に必要なインターフェース。
// session.Storeの部分集合として定義する。
type SessionIssuer interface {
	// Create は(メンバー, スクワッド)の組に新しいセッションを発行する。
	Create(memberID, squadID string, ttl time.Duration) (*model.Session, error)
	// RevokeMember は指定メンバーの全セッションを破棄する。
	RevokeMember(memberID string) int
}

// LocationRemover は位置情報のカスケード削除に必要なインターフェース。
// location.Cacheの部分集合として定義する。
type LocationRemover interface {
	RemoveMember(squadID, memberID string)
	RemoveSquad(squadID string)
}

// AvatarGuard はアバターURLの検証に必要なインターフェース。
// security.AvatarGuardServiceの部分集合として定義する。
type AvatarGuard interface {
	ValidateAvatarURL(rawURL string) error
}

// SquadHandler はスクワッド管理のHTTPハンドラー。
// レジストリの変更後にセッション失効と位置情報削除のカスケードを
// 明示的に実行する。ストア間のトランザクションは存在しないため、
// カスケードは逐次のベストエフォートとなる。
type SquadHandler struct {
	registry   SquadRegistryInterface
	sessions   SessionIssuer
	locations  LocationRemover
	guard      AvatarGuard
	collector  metrics.MetricsCollector
	sessionTTL time.Duration
}

// NewSquadHandler はSquadHandlerを生成する。
func NewSquadHandler(
	registry SquadRegistryInterface,
	sessions SessionIssuer,
	locations LocationRemover,
	guard AvatarGuard,
	collector metrics.MetricsCollector,
	sessionTTL time.Duration,
) *SquadHandler {
	return &SquadHandler{
		registry:   registry,
		sessions:   sessions,
		locations:  locations,
		guard:      guard,
		collector:  collector,
		sessionTTL: sessionTTL,
	}
}

// createSquadRequest はスクワッド作成リクエストのボディ。
type createSquadRequest struct {
	Name       string                `json:"name"`
	LeaderName string                `json:"leader_name"`
	AvatarURL  string                `json:"avatar_url,omitempty"`
	Settings   *squadSettingsPayload `json:"settings,omitempty"`
}

// createSquadResponse はスクワッド作成レスポンス。
// 作成と同時にリーダーのセッションを発行し、APIキーを返す。
type createSquadResponse struct {
	SquadID  string `json:"squad_id"`
	JoinCode string `json:"join_code"`
	MemberID string `json:"member_id"`
	APIKey   string `json:"api_key"`
}

// joinSquadRequest はスクワッド参加リクエストのボディ。
type joinSquadRequest struct {
	JoinCode    string `json:"join_code"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// joinSquadResponse はスクワッド参加レスポンス。
type joinSquadResponse struct {
	MemberID string        `json:"member_id"`
	APIKey   string        `json:"api_key"`
	Squad    squadResponse `json:"squad"`
}

// CreateSquad はスクワッド作成を処理する。
// POST /api/v1/squads
func (h *SquadHandler) CreateSquad(w http.ResponseWriter, r *http.Request) {
	var req createSquadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.guard.ValidateAvatarURL(req.AvatarURL); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidAvatarError(err.Error()))
		return
	}

	created, leaderID, err := h.registry.CreateSquad(req.Name, req.LeaderName, req.AvatarURL, req.Settings.toModel())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// リーダーのセッションを発行
	sess, err := h.sessions.Create(leaderID, created.SquadID, h.sessionTTL)
	if err != nil {
		slog.Error("failed to issue leader session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.collector.RecordSquadCreated()
	h.collector.RecordSessionIssued()
	slog.Info("squad created",
		slog.String("squad_id", created.SquadID),
		slog.String("join_code", created.JoinCode),
	)

	writeJSON(w, http.StatusCreated, createSquadResponse{
		SquadID:  created.SquadID,
		JoinCode: created.JoinCode,
		MemberID: leaderID,
		APIKey:   sess.APIKey,
	})
}

// ListSquads は全スクワッドの一覧を返す。
// GET /api/v1/squads
func (h *SquadHandler) ListSquads(w http.ResponseWriter, r *http.Request) {
	squads := h.registry.ListSquads()
	results := make([]squadResponse, len(squads))
	for i := range squads {
		results[i] = toSquadResponse(&squads[i])
	}
	writeJSON(w, http.StatusOK, results)
}

// GetSquad はスクワッド詳細を取得する。
// GET /api/v1/squads/{id}
func (h *SquadHandler) GetSquad(w http.ResponseWriter, r *http.Request) {
	squadID := chi.URLParam(r, "id")

	s := h.registry.GetSquad(squadID)
	if s == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewSquadNotFoundError(squadID))
		return
	}
	writeJSON(w, http.StatusOK, toSquadResponse(s))
}

// JoinSquad はスクワッド参加を処理する。
// POST /api/v1/squads/{id}/join
func (h *SquadHandler) JoinSquad(w http.ResponseWriter, r *http.Request) {
	squadID := chi.URLParam(r, "id")

	var req joinSquadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.guard.ValidateAvatarURL(req.AvatarURL); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidAvatarError(err.Error()))
		return
	}

	// パスのスクワッドIDと参加コードの対象スクワッドが一致することを確認
	if byCode := h.registry.GetSquadByCode(req.JoinCode); byCode != nil && byCode.SquadID != squadID {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "JOIN_CODE_MISMATCH",
			Message:  "参加コードはこのスクワッドのものではありません。",
			Category: "validation",
			Action:   "URLのスクワッドIDと参加コードの組み合わせを確認してください。",
		})
		return
	}

	joined, memberID, err := h.registry.JoinSquad(req.JoinCode, req.DisplayName, req.AvatarURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 新メンバーのセッションを発行
	sess, err := h.sessions.Create(memberID, joined.SquadID, h.sessionTTL)
	if err != nil {
		slog.Error("failed to issue member session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.collector.RecordSquadJoined()
	h.collector.RecordSessionIssued()
	slog.Info("member joined squad",
		slog.String("squad_id", joined.SquadID),
		slog.String("member_id", memberID),
	)

	writeJSON(w, http.StatusOK, joinSquadResponse{
		MemberID: memberID,
		APIKey:   sess.APIKey,
		Squad:    toSquadResponse(joined),
	})
}

// LeaveSquad はスクワッドからの脱退を処理する。
// 脱退者の身元は検証済みセッションから取得する。
// リーダーの脱退はスクワッド全体の解散を意味する。
// POST /api/v1/squads/{id}/leave
func (h *SquadHandler) LeaveSquad(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	squadID := chi.URLParam(r, "id")
	if sess.SquadID != squadID {
		writeAPIErrorResponse(w, http.StatusForbidden, notMemberError())
		return
	}

	result, err := h.registry.LeaveSquad(squadID, sess.MemberID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// カスケード: 除去されたメンバーのセッションを失効させ、位置情報を削除する
	h.cascadeRemoval(squadID, result.SquadDeleted, result.RemovedMemberIDs)

	if result.SquadDeleted {
		h.collector.RecordSquadDeleted("leader_left")
		slog.Info("squad disbanded by leader leaving",
			slog.String("squad_id", squadID),
			slog.Int("members_removed", len(result.RemovedMemberIDs)),
		)
	} else {
		slog.Info("member left squad",
			slog.String("squad_id", squadID),
			slog.String("member_id", sess.MemberID),
		)
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteSquad はスクワッドの解散を処理する。リーダーのみ実行できる。
// DELETE /api/v1/squads/{id}
func (h *SquadHandler) DeleteSquad(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	squadID := chi.URLParam(r, "id")
	if sess.SquadID != squadID {
		writeAPIErrorResponse(w, http.StatusForbidden, notMemberError())
		return
	}

	removed, err := h.registry.DeleteSquad(squadID, sess.MemberID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// カスケード: 全メンバーのセッションを失効させ、スクワッドの位置情報を削除する
	h.cascadeRemoval(squadID, true, removed)

	h.collector.RecordSquadDeleted("deleted")
	slog.Info("squad deleted",
		slog.String("squad_id", squadID),
		slog.Int("members_removed", len(removed)),
	)

	w.WriteHeader(http.StatusNoContent)
}

// cascadeRemoval はレジストリ変更後のストア間カスケードを実行する。
// スクワッド解散時は位置情報のサブマップごと削除し、
// 個別脱退時は該当メンバーの位置のみを削除する。
func (h *SquadHandler) cascadeRemoval(squadID string, squadDeleted bool, memberIDs []string) {
	for _, memberID := range memberIDs {
		h.sessions.RevokeMember(memberID)
	}
	if squadDeleted {
		h.locations.RemoveSquad(squadID)
		return
	}
	for _, memberID := range memberIDs {
		h.locations.RemoveMember(squadID, memberID)
	}
}

// --- レスポンス変換 ---

// squadSettingsPayload はスクワッド設定のJSON表現。
type squadSettingsPayload struct {
	IsPublic                   bool `json:"is_public"`
	RequireApproval            bool `json:"require_approval"`
	ShareAltitude              bool `json:"share_altitude"`
	ShareSpeed                 bool `json:"share_speed"`
	LocationUpdateIntervalSecs int  `json:"location_update_interval_secs"`
}

// toModel はペイロードをドメイン設定に変換する。nilはnilのまま返す。
func (p *squadSettingsPayload) toModel() *model.SquadSettings {
	if p == nil {
		return nil
	}
	return &model.SquadSettings{
		IsPublic:                   p.IsPublic,
		RequireApproval:            p.RequireApproval,
		ShareAltitude:              p.ShareAltitude,
		ShareSpeed:                 p.ShareSpeed,
		LocationUpdateIntervalSecs: p.LocationUpdateIntervalSecs,
	}
}

// memberResponse はメンバー情報のAPIレスポンス。
type memberResponse struct {
	MemberID    string    `json:"member_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
	IsLeader    bool      `json:"is_leader"`
}

// squadResponse はスクワッド情報のAPIレスポンス。
type squadResponse struct {
	SquadID   string               `json:"squad_id"`
	Name      string               `json:"name"`
	JoinCode  string               `json:"join_code"`
	CreatedAt time.Time            `json:"created_at"`
	LeaderID  string               `json:"leader_id"`
	Members   []memberResponse     `json:"members"`
	Settings  squadSettingsPayload `json:"settings"`
}

// toSquadResponse はドメインのSquadをAPIレスポンス型に変換する。
func toSquadResponse(s *model.Squad) squadResponse {
	members := make([]memberResponse, len(s.Members))
	for i, m := range s.Members {
		members[i] = memberResponse{
			MemberID:    m.MemberID,
			DisplayName: m.DisplayName,
			AvatarURL:   m.AvatarURL,
			JoinedAt:    m.JoinedAt,
			IsLeader:    m.IsLeader,
		}
	}
	return squadResponse{
		SquadID:   s.SquadID,
		Name:      s.Name,
		JoinCode:  s.JoinCode,
		CreatedAt: s.CreatedAt,
		LeaderID:  s.LeaderID,
		Members:   members,
		Settings: squadSettingsPayload{
			IsPublic:                   s.Settings.IsPublic,
			RequireApproval:            s.Settings.RequireApproval,
			ShareAltitude:              s.Settings.ShareAltitude,
			ShareSpeed:                 s.Settings.ShareSpeed,
			LocationUpdateIntervalSecs: s.Settings.LocationUpdateIntervalSecs,
		},
	}
}

// --- 共通ヘルパー ---

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// writeInvalidRequestBody はリクエストボディ解析失敗の400レスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// unauthorizedError は401用のAPIErrorを生成する。
func unauthorizedError() *model.APIError {
	return &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "有効なAPIキーをAuthorization: Bearerヘッダーで指定してください。",
	}
}

// notMemberError はセッションと対象スクワッドの不一致に対する403用のAPIErrorを生成する。
func notMemberError() *model.APIError {
	return &model.APIError{
		Code:     "NOT_SQUAD_MEMBER",
		Message:  "このスクワッドに対する操作権限がありません。",
		Category: "auth",
		Action:   "自分が所属しているスクワッドに対して操作してください。",
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeSquadNotFound, model.ErrCodeInvalidJoinCode, model.ErrCodeMemberNotFound:
		return http.StatusNotFound
	case model.ErrCodeNameTaken, model.ErrCodeSquadFull:
		return http.StatusConflict
	case model.ErrCodeNotLeader:
		return http.StatusForbidden
	case model.ErrCodeInvalidName, model.ErrCodeInvalidAvatar:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
