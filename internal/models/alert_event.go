package models

import (
	"time"

	"investtracker/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AlertEvent is the history record written when a rule fires.
// Append-only: no Base embed, no soft deletes, never updated.
type AlertEvent struct {
	ID           string          `gorm:"type:uuid;primaryKey" json:"id"`
	AlertID      string          `gorm:"type:uuid;not null;index" json:"alert_id"`
	AssetID      string          `gorm:"type:uuid;not null" json:"asset_id"`
	UserID       string          `gorm:"type:uuid;not null;index:idx_alert_history_user_sent" json:"user_id"`
	Ticker       string          `gorm:"not null" json:"ticker"`
	AlertType    AlertType       `gorm:"not null" json:"alert_type"`
	Message      string          `gorm:"type:text;not null" json:"message"`
	CurrentPrice decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"current_price"`
	Threshold    decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"threshold"`
	SentAt       time.Time       `gorm:"not null;index:idx_alert_history_user_sent" json:"sent_at"`
}

// TableName keeps the table name used by the rest of the product.
func (AlertEvent) TableName() string { return "alert_history" }

// BeforeCreate hook generates a UUIDv7 for new records
func (e *AlertEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New()
	}
	return nil
}
