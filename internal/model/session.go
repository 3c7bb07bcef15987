package model

import "time"

// Session pins the logged-in user for one chat. One row per chat, the
// analog of the single persisted key a browser profile would hold.
type Session struct {
	ID        uint  `gorm:"primaryKey"`
	ChatID    int64 `gorm:"uniqueIndex"`
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
