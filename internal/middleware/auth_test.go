package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/squadz/internal/model"
)

// mockValidator はSessionValidatorのモック実装。
type mockValidator struct {
	session    *model.Session
	calledWith string
}

func (m *mockValidator) Validate(apiKey string) *model.Session {
	m.calledWith = apiKey
	return m.session
}

func newProtectedHandler(t *testing.T, captured **model.Session) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := SessionFromContext(r.Context())
		if err != nil {
			t.Errorf("session should be available in context: %v", err)
		}
		*captured = sess
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_ValidKeyInjectsSession(t *testing.T) {
	validator := &mockValidator{
		session: &model.Session{MemberID: "member-1", SquadID: "squad-1", APIKey: "sqz_valid"},
	}

	var captured *model.Session
	handler := NewAuthMiddleware(validator)(newProtectedHandler(t, &captured))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/locations", nil)
	req.Header.Set("Authorization", "Bearer sqz_valid")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if validator.calledWith != "sqz_valid" {
		t.Errorf("validator called with %q, want %q", validator.calledWith, "sqz_valid")
	}
	if captured == nil || captured.MemberID != "member-1" {
		t.Errorf("captured session = %+v, want member-1", captured)
	}
}

func TestAuthMiddleware_MissingHeaderReturns401(t *testing.T) {
	validator := &mockValidator{}
	handler := NewAuthMiddleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("認証失敗時にハンドラーが呼ばれてはならない")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/locations", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	var body ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse error body: %v", err)
	}
	if body.Code != "UNAUTHORIZED" {
		t.Errorf("error code = %q, want UNAUTHORIZED", body.Code)
	}
}

func TestAuthMiddleware_MalformedHeaderReturns401(t *testing.T) {
	validator := &mockValidator{
		session: &model.Session{MemberID: "member-1"},
	}
	handler := NewAuthMiddleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("認証失敗時にハンドラーが呼ばれてはならない")
	}))

	headers := []string{
		"sqz_valid",        // Bearerプレフィックスなし
		"Basic sqz_valid",  // 別のスキーム
		"bearer sqz_valid", // 小文字（大文字小文字は区別する）
	}
	for _, h := range headers {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/locations", nil)
		req.Header.Set("Authorization", h)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", h, rec.Code)
		}
	}
}

func TestAuthMiddleware_InvalidKeyReturns401(t *testing.T) {
	// validatorがnilを返す = 無効・期限切れ・未発行
	validator := &mockValidator{session: nil}
	handler := NewAuthMiddleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("認証失敗時にハンドラーが呼ばれてはならない")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/locations", nil)
	req.Header.Set("Authorization", "Bearer sqz_expired")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSessionFromContext_MissingSession(t *testing.T) {
	if _, err := SessionFromContext(context.Background()); err == nil {
		t.Error("セッションのないコンテキストはエラーを返すべき")
	}
}

func TestContextWithSession_RoundTrip(t *testing.T) {
	sess := &model.Session{MemberID: "member-1"}
	ctx := ContextWithSession(context.Background(), sess)

	got, err := SessionFromContext(ctx)
	if err != nil {
		t.Fatalf("SessionFromContext failed: %v", err)
	}
	if got.MemberID != "member-1" {
		t.Errorf("MemberID = %q, want member-1", got.MemberID)
	}
}
