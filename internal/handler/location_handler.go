package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/squadz/internal/metrics"
	"github.com/hitoshi/squadz/internal/middleware"
	"github.com/hitoshi/squadz/internal/model"
)

// LocationCacheInterface は位置ハンドラーが必要とするキャッシュのインターフェース。
type LocationCacheInterface interface {
	// Update はメンバーの位置を挿入または上書きする。
	Update(squadID, memberID, displayName string, point model.GeoPoint)
	// SquadLocations はスクワッドの全報告済み位置をstale判定付きで返す。
	SquadLocations(squadID string) []model.MemberLocation
}

// SquadFinder はスクワッドの参照に必要なインターフェース。
// squad.Registryの部分集合として定義する。
type SquadFinder interface {
	GetSquad(squadID string) *model.Squad
}

// LocationHandler は位置情報のHTTPハンドラー。
type LocationHandler struct {
	cache     LocationCacheInterface
	finder    SquadFinder
	collector metrics.MetricsCollector
}

// NewLocationHandler はLocationHandlerを生成する。
func NewLocationHandler(cache LocationCacheInterface, finder SquadFinder, collector metrics.MetricsCollector) *LocationHandler {
	return &LocationHandler{
		cache:     cache,
		finder:    finder,
		collector: collector,
	}
}

// geoPointPayload は地理座標のJSON表現。
type geoPointPayload struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
}

// updateLocationRequest は位置更新リクエストのボディ。
// 対象のメンバーとスクワッドは検証済みセッションから決まる。
type updateLocationRequest struct {
	Location geoPointPayload `json:"location"`
}

// memberLocationPayload はメンバー位置のJSON表現。
type memberLocationPayload struct {
	MemberID    string          `json:"member_id"`
	DisplayName string          `json:"display_name"`
	Location    geoPointPayload `json:"location"`
	UpdatedAt   time.Time       `json:"updated_at"`
	IsStale     bool            `json:"is_stale"`
}

// squadLocationsResponse はスクワッドの位置一覧レスポンス。
type squadLocationsResponse struct {
	SquadID   string                  `json:"squad_id"`
	SquadName string                  `json:"squad_name"`
	Locations []memberLocationPayload `json:"locations"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// UpdateLocation は認証済みメンバーの位置更新を処理する。
// 表示名はこの時点でレジストリから非正規化コピーとして取り込まれる。
// 座標範囲の妥当性検証は行わない。
// POST /api/v1/locations
func (h *LocationHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	var req updateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	// セッションのスクワッドが存続していて、メンバーがまだ所属していることを確認
	s := h.finder.GetSquad(sess.SquadID)
	if s == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewSquadNotFoundError(sess.SquadID))
		return
	}
	member := s.FindMember(sess.MemberID)
	if member == nil {
		writeAPIErrorResponse(w, http.StatusForbidden, notMemberError())
		return
	}

	h.cache.Update(sess.SquadID, sess.MemberID, member.DisplayName, req.Location.toModel())
	h.collector.RecordLocationUpdate()

	w.WriteHeader(http.StatusOK)
}

// GetSquadLocations はスクワッドの全メンバー位置を返す。
// 一度も報告していないメンバーは結果に含まれない。
// スクワッド設定で共有が無効な任意フィールド（高度・速度）は応答から除外する。
// GET /api/v1/squads/{id}/locations
func (h *LocationHandler) GetSquadLocations(w http.ResponseWriter, r *http.Request) {
	squadID := chi.URLParam(r, "id")

	s := h.finder.GetSquad(squadID)
	if s == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewSquadNotFoundError(squadID))
		return
	}

	locations := h.cache.SquadLocations(squadID)
	payloads := make([]memberLocationPayload, len(locations))
	for i, loc := range locations {
		payloads[i] = toMemberLocationPayload(loc, s.Settings)
	}

	writeJSON(w, http.StatusOK, squadLocationsResponse{
		SquadID:   squadID,
		SquadName: s.Name,
		Locations: payloads,
		UpdatedAt: time.Now(),
	})
}

// toModel はペイロードをドメインのGeoPointに変換する。
func (p geoPointPayload) toModel() model.GeoPoint {
	return model.GeoPoint{
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Altitude:  p.Altitude,
		Accuracy:  p.Accuracy,
		Heading:   p.Heading,
		Speed:     p.Speed,
	}
}

// toMemberLocationPayload はドメインのMemberLocationをAPIレスポンス型に変換する。
// スクワッド設定に応じて高度と速度をマスクする。
func toMemberLocationPayload(loc model.MemberLocation, settings model.SquadSettings) memberLocationPayload {
	point := geoPointPayload{
		Latitude:  loc.Location.Latitude,
		Longitude: loc.Location.Longitude,
		Accuracy:  loc.Location.Accuracy,
		Heading:   loc.Location.Heading,
	}
	if settings.ShareAltitude {
		point.Altitude = loc.Location.Altitude
	}
	if settings.ShareSpeed {
		point.Speed = loc.Location.Speed
	}
	return memberLocationPayload{
		MemberID:    loc.MemberID,
		DisplayName: loc.DisplayName,
		Location:    point,
		UpdatedAt:   loc.UpdatedAt,
		IsStale:     loc.IsStale,
	}
}
