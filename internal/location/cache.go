// Package location はメンバーの最新位置を保持するインメモリキャッシュを提供する。
// 位置は書き込みからTTLを超えるとstaleと判定され、2×TTLを超えると
// 定期掃き出しで破棄される。
package location

import (
	"sync"
	"time"

	"github.com/hitoshi/squadz/internal/model"
)

// storedLocation はキャッシュ内部の位置レコード。
// DisplayNameは書き込み時点の非正規化コピー。
type storedLocation struct {
	memberID    string
	displayName string
	location    model.GeoPoint
	updatedAt   time.Time
}

// Cache はスクワッド → メンバー → 位置の2段マップで最新位置を保持する。
//
// 並行制御: 外側（スクワッドキー）のマップを単一のRWMutexで保護する。
// スクワッドごとのサブマップは独立にはロックしない。
type Cache struct {
	mu        sync.RWMutex
	locations map[string]map[string]*storedLocation
	ttl       time.Duration

	// nowFuncはテストで時刻を固定するために差し替える
	nowFunc func() time.Time
}

// NewCache はCacheの新しいインスタンスを生成する。
// ttlが0以下の場合はデフォルト値5分を使用する。
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		locations: make(map[string]map[string]*storedLocation),
		ttl:       ttl,
		nowFunc:   time.Now,
	}
}

// Update はメンバーの位置を挿入または上書きする。
// タイムスタンプは現在時刻に設定する。
// 座標範囲（緯度経度の妥当性）の検証は行わない（呼び出し側の責務）。
func (c *Cache) Update(squadID, memberID, displayName string, point model.GeoPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	squadLocs, ok := c.locations[squadID]
	if !ok {
		squadLocs = make(map[string]*storedLocation)
		c.locations[squadID] = squadLocs
	}
	squadLocs[memberID] = &storedLocation{
		memberID:    memberID,
		displayName: displayName,
		location:    point,
		updatedAt:   c.nowFunc(),
	}
}

// SquadLocations はスクワッド内で位置を報告したことのある全メンバーの
// 最新位置を返す。一度も報告していないメンバーは含まれない。
// 各エントリのIsStaleは参照時点で age > TTL かどうかで算出される
// 読み取り時プロパティであり、保存された状態ではない。
// 順序は不定。
func (c *Cache) SquadLocations(squadID string) []model.MemberLocation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	squadLocs, ok := c.locations[squadID]
	if !ok {
		return []model.MemberLocation{}
	}

	staleBefore := c.nowFunc().Add(-c.ttl)
	results := make([]model.MemberLocation, 0, len(squadLocs))
	for _, loc := range squadLocs {
		results = append(results, model.MemberLocation{
			MemberID:    loc.memberID,
			DisplayName: loc.displayName,
			Location:    loc.location,
			UpdatedAt:   loc.updatedAt,
			IsStale:     loc.updatedAt.Before(staleBefore),
		})
	}
	return results
}

// RemoveMember はメンバーの位置を削除する。脱退時のカスケード処理で使用する。
func (c *Cache) RemoveMember(squadID, memberID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if squadLocs, ok := c.locations[squadID]; ok {
		delete(squadLocs, memberID)
	}
}

// RemoveSquad はスクワッドの全位置を削除する。解散時のカスケード処理で使用する。
func (c *Cache) RemoveSquad(squadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locations, squadID)
}

// CleanupStale は古い位置を掃き出し、削除したエントリ数を返す。
// 破棄の閾値は表示上のstale判定（TTL）より長い2×TTLで、
// staleと表示されたままの位置がしばらく参照可能な猶予を設けている。
// 空になったスクワッドのサブマップも取り除く。
// 外部の定期スケジューラから呼び出されることを想定している。
func (c *Cache) CleanupStale() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	purgeBefore := c.nowFunc().Add(-2 * c.ttl)
	removed := 0
	for squadID, squadLocs := range c.locations {
		for memberID, loc := range squadLocs {
			if loc.updatedAt.Before(purgeBefore) {
				delete(squadLocs, memberID)
				removed++
			}
		}
		if len(squadLocs) == 0 {
			delete(c.locations, squadID)
		}
	}
	return removed
}

// Count は現在保持している位置エントリの総数を返す。メトリクス用。
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := 0
	for _, squadLocs := range c.locations {
		total += len(squadLocs)
	}
	return total
}

// TTL は設定されたstale判定の閾値を返す。
func (c *Cache) TTL() time.Duration {
	return c.ttl
}
