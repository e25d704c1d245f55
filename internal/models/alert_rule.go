package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertType identifies what an alert rule watches for.
type AlertType string

const (
	AlertTypeTargetBuy  AlertType = "target_buy"
	AlertTypeTargetSell AlertType = "target_sell"
	AlertTypeStopLoss   AlertType = "stop_loss"
	AlertTypeTakeProfit AlertType = "take_profit"
)

// Valid reports whether t is one of the supported alert types.
func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeTargetBuy, AlertTypeTargetSell, AlertTypeStopLoss, AlertTypeTakeProfit:
		return true
	}
	return false
}

// Label returns the human-readable name used in alert messages.
func (t AlertType) Label() string {
	switch t {
	case AlertTypeTargetBuy:
		return "Target Buy"
	case AlertTypeTargetSell:
		return "Target Sell"
	case AlertTypeStopLoss:
		return "Stop Loss"
	case AlertTypeTakeProfit:
		return "Take Profit"
	}
	return string(t)
}

// SideState is the last observed position of the price relative to a rule's threshold.
type SideState string

const (
	SideUnknown SideState = "unknown"
	SideAbove   SideState = "above"
	SideBelow   SideState = "below"
)

// AlertRule is a user-defined price alert on one asset.
//
// SideState, LastTriggeredAt and IsActive are also written by the evaluation
// engine. Every write bumps Version; engine commits are conditional on it.
type AlertRule struct {
	Base
	UserID          string          `gorm:"type:uuid;not null;index" json:"user_id"`
	AssetID         string          `gorm:"type:uuid;not null;index" json:"asset_id"`
	AlertType       AlertType       `gorm:"not null" json:"alert_type"`
	TargetValue     decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"target_value"`
	IsPercentage    bool            `gorm:"not null" json:"is_percentage"`
	IsActive        bool            `gorm:"not null;index" json:"is_active"`
	SideState       SideState       `gorm:"size:16;not null" json:"side_state"`
	LastTriggeredAt *time.Time      `json:"last_triggered_at,omitempty"`
	ActivatedAt     time.Time       `gorm:"not null" json:"activated_at"`
	Version         int64           `gorm:"not null" json:"-"`

	Asset *Asset `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}
