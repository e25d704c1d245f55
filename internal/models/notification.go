package models

import "github.com/shopspring/decimal"

// Notification is an in-app message shown to the owner. Notifications created
// by the engine reference exactly one AlertEvent; test notifications reference none.
type Notification struct {
	Base
	UserID       string              `gorm:"type:uuid;not null;index" json:"user_id"`
	AlertEventID *string             `gorm:"type:uuid;uniqueIndex" json:"alert_event_id,omitempty"`
	Title        string              `gorm:"not null" json:"title"`
	Message      string              `gorm:"type:text;not null" json:"message"`
	CurrentPrice decimal.NullDecimal `gorm:"type:numeric(24,8)" json:"current_price"`
	IsRead       bool                `gorm:"not null;index" json:"is_read"`
}
