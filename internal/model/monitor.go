package model

import "time"

// User はTelegramユーザーを表す。UserIDはチャット宛先としても使う。
type User struct {
	UserID    int64
	Username  string
	CreatedAt time.Time
}

// Monitor はユーザーと商品の監視契約（有効期限付き）を表す。
type Monitor struct {
	ID        string
	UserID    int64
	ProductID string
	Active    bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsLive は監視が指定時刻において有効かを返す。
func (m *Monitor) IsLive(now time.Time) bool {
	return m.Active && m.ExpiresAt.After(now)
}

// ActiveMonitor は監視ループが1サイクルごとに列挙する有効な監視。
// 商品情報を結合済みで保持する。
type ActiveMonitor struct {
	MonitorID string
	UserID    int64
	Product   Product
	ExpiresAt time.Time
}

// NotificationLog は在庫通知の送信結果の記録。
type NotificationLog struct {
	ID        string
	ProductID string
	Region    Region
	Total     int
	Sent      int
	CreatedAt time.Time
}
