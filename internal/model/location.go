package model

import "time"

// GeoPoint は地理座標を表す。
// 緯度・経度以外のフィールドは任意で、未報告の場合はnil。
type GeoPoint struct {
	Latitude  float64
	Longitude float64
	Altitude  *float64
	Accuracy  *float64
	Heading   *float64
	Speed     *float64
}

// MemberLocation はメンバーの最新位置の読み取り結果を表す。
// DisplayNameは書き込み時点の非正規化コピーであり、
// メンバーの改名には追従しない。
// IsStaleは参照時刻基準で算出される読み取り時プロパティであり、
// 保存された状態ではない。
type MemberLocation struct {
	MemberID    string
	DisplayName string
	Location    GeoPoint
	UpdatedAt   time.Time
	IsStale     bool
}
