package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/squadz/internal/model"
)

// mockSquadLister はSquadListerのモック実装。
type mockSquadLister struct {
	squads []model.Squad
}

func (m *mockSquadLister) ListSquads() []model.Squad { return m.squads }

// mockSessionCounter はSessionCounterのモック実装。
type mockSessionCounter struct {
	count int
}

func (m *mockSessionCounter) Count() int { return m.count }

func TestDashboard_WrongPasswordShowsLoginForm(t *testing.T) {
	h := NewDashboardHandler(&mockSquadLister{}, &mockSessionCounter{}, "correct")

	tests := []string{
		"/",                 // パスワードなし
		"/?password=wrong",  // 不一致
		"/?password=",       // 空
		"/?password=CORREC", // 部分一致
	}
	for _, target := range tests {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		h.Page(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", target, rec.Code)
		}
		body := rec.Body.String()
		if !strings.Contains(body, `type="password"`) {
			t.Errorf("%s: ログインフォームが表示されるべき", target)
		}
		if strings.Contains(body, "Join Code") {
			t.Errorf("%s: 認証前にスクワッド情報が表示されてはならない", target)
		}
	}
}

func TestDashboard_CorrectPasswordShowsSquads(t *testing.T) {
	squads := []model.Squad{*testSquad("squad-1", "leader-1")}
	h := NewDashboardHandler(&mockSquadLister{squads: squads}, &mockSessionCounter{count: 3}, "correct")

	req := httptest.NewRequest(http.MethodGet, "/?password=correct", nil)
	rec := httptest.NewRecorder()
	h.Page(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Alpha") {
		t.Error("ダッシュボードはスクワッド名を表示するべき")
	}
	if !strings.Contains(body, "ABC234") {
		t.Error("ダッシュボードは参加コードを表示するべき")
	}
	if !strings.Contains(body, "Cap") {
		t.Error("ダッシュボードはメンバー名を表示するべき")
	}
	if !strings.Contains(body, "Leader") {
		t.Error("ダッシュボードはリーダーを示すべき")
	}
}

func TestDashboard_EscapesStoredNames(t *testing.T) {
	// サニタイザを通過し得る文字列もテンプレートでエスケープされる
	s := testSquad("squad-1", "leader-1")
	s.Name = `<script>alert("xss")</script>`
	h := NewDashboardHandler(&mockSquadLister{squads: []model.Squad{*s}}, &mockSessionCounter{}, "pw")

	req := httptest.NewRequest(http.MethodGet, "/?password=pw", nil)
	rec := httptest.NewRecorder()
	h.Page(rec, req)

	body := rec.Body.String()
	if strings.Contains(body, `<script>alert`) {
		t.Error("スクワッド名はHTMLエスケープされるべき")
	}
}

func TestDashboard_EmptyStateMessage(t *testing.T) {
	h := NewDashboardHandler(&mockSquadLister{}, &mockSessionCounter{}, "pw")

	req := httptest.NewRequest(http.MethodGet, "/?password=pw", nil)
	rec := httptest.NewRecorder()
	h.Page(rec, req)

	if !strings.Contains(rec.Body.String(), "No squads") {
		t.Error("スクワッドがない場合は空状態メッセージを表示するべき")
	}
}
