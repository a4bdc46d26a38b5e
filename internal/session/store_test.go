package session

import (
	"strings"
	"testing"
	"time"
)

// fixedClock はnowFuncを固定時刻に差し替えるヘルパー。
func fixedClock(s *Store, t time.Time) {
	s.nowFunc = func() time.Time { return t }
}

func TestCreate_APIKeyFormat(t *testing.T) {
	store := NewStore()

	sess, err := store.Create("member-1", "squad-1", time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if !strings.HasPrefix(sess.APIKey, apiKeyPrefix) {
		t.Errorf("API key %q should have prefix %q", sess.APIKey, apiKeyPrefix)
	}
	// 32バイトのURL-safe base64（パディングなし）は43文字
	if got := len(sess.APIKey) - len(apiKeyPrefix); got != 43 {
		t.Errorf("API key entropy part length = %d, want 43", got)
	}
}

func TestCreate_SetsAbsoluteExpiry(t *testing.T) {
	store := NewStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(store, now)

	sess, err := store.Create("member-1", "squad-1", time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if !sess.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", sess.CreatedAt, now)
	}
	if !sess.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", sess.ExpiresAt, now.Add(time.Hour))
	}
	if !sess.LastSeenAt.Equal(now) {
		t.Errorf("LastSeenAt = %v, want %v", sess.LastSeenAt, now)
	}
}

func TestValidate_UnknownKeyReturnsNil(t *testing.T) {
	store := NewStore()

	if got := store.Validate("sqz_unknown"); got != nil {
		t.Errorf("Validate = %+v, want nil", got)
	}
}

func TestValidate_TouchesLastSeen(t *testing.T) {
	store := NewStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(store, now)

	sess, err := store.Create("member-1", "squad-1", time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	later := now.Add(10 * time.Minute)
	fixedClock(store, later)

	got := store.Validate(sess.APIKey)
	if got == nil {
		t.Fatal("有効期間内のセッションは検証に成功するべき")
	}
	if !got.LastSeenAt.Equal(later) {
		t.Errorf("LastSeenAt = %v, want %v", got.LastSeenAt, later)
	}
	// 絶対期限は延長されない
	if !got.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v (検証で期限が延長されてはならない)", got.ExpiresAt, now.Add(time.Hour))
	}
}

func TestValidate_ExactlyAtExpiryIsInvalid(t *testing.T) {
	store := NewStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(store, now)

	sess, err := store.Create("member-1", "squad-1", time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// 期限ちょうどの時刻では無効
	fixedClock(store, now.Add(time.Hour))
	if got := store.Validate(sess.APIKey); got != nil {
		t.Error("expires_atちょうどの時刻でセッションは無効になるべき")
	}
}

func TestValidate_JustBeforeExpiryIsValid(t *testing.T) {
	store := NewStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(store, now)

	sess, err := store.Create("member-1", "squad-1", time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	fixedClock(store, now.Add(time.Hour-time.Nanosecond))
	if got := store.Validate(sess.APIKey); got == nil {
		t.Error("expires_at直前の時刻でセッションは有効であるべき")
	}
}

func TestValidate_ExpiredSessionIsLazilyDeleted(t *testing.T) {
	store := NewStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(store, now)

	sess, err := store.Create("member-1", "squad-1", time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	fixedClock(store, now.Add(2*time.Hour))
	if got := store.Validate(sess.APIKey); got != nil {
		t.Fatal("期限切れセッションの検証はnilを返すべき")
	}

	// 遅延失効により格納自体が消えている
	if store.Count() != 0 {
		t.Errorf("count after expired validate = %d, want 0", store.Count())
	}
}

func TestRevoke_RemovesSession(t *testing.T) {
	store := NewStore()

	sess, err := store.Create("member-1", "squad-1", time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if !store.Revoke(sess.APIKey) {
		t.Error("既存セッションのRevokeはtrueを返すべき")
	}
	if store.Revoke(sess.APIKey) {
		t.Error("二重のRevokeはfalseを返すべき")
	}
	if store.Validate(sess.APIKey) != nil {
		t.Error("破棄済みセッションの検証はnilを返すべき")
	}
}

func TestRevokeMember_RemovesAllSessionsOfMember(t *testing.T) {
	store := NewStore()

	if _, err := store.Create("member-1", "squad-1", time.Hour); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Create("member-1", "squad-1", time.Hour); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	other, err := store.Create("member-2", "squad-1", time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	removed := store.RevokeMember("member-1")
	if removed != 2 {
		t.Errorf("revoked count = %d, want 2", removed)
	}
	if store.Validate(other.APIKey) == nil {
		t.Error("他のメンバーのセッションは破棄されてはならない")
	}
}

func TestCleanupExpired_RemovesOnlyExpired(t *testing.T) {
	store := NewStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(store, now)

	if _, err := store.Create("member-1", "squad-1", time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	live, err := store.Create("member-2", "squad-1", time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	fixedClock(store, now.Add(10*time.Minute))

	removed := store.CleanupExpired()
	if removed != 1 {
		t.Errorf("cleanup removed = %d, want 1", removed)
	}
	if store.Validate(live.APIKey) == nil {
		t.Error("有効期間内のセッションは掃き出しで破棄されてはならない")
	}
}

func TestValidate_ReturnsIndependentCopy(t *testing.T) {
	store := NewStore()

	sess, err := store.Create("member-1", "squad-1", time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got := store.Validate(sess.APIKey)
	got.MemberID = "mutated"

	again := store.Validate(sess.APIKey)
	if again.MemberID != "member-1" {
		t.Error("Validateの戻り値は内部状態から独立したコピーであるべき")
	}
}
