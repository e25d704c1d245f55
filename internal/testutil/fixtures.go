package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"investtracker/internal/models"
	"investtracker/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// NewOwnerID returns a fresh owner (user) id, as issued by the identity provider.
func NewOwnerID() string {
	return uuid.New()
}

// CreateTestAsset creates a NYSE stock with a unique ticker, 10 units at 100 USD.
func CreateTestAsset(t *testing.T, db *gorm.DB, userID string) *models.Asset {
	t.Helper()
	return CreateTestAssetWith(t, db, userID, fmt.Sprintf("TST%d", nextID()), "NYSE", "100")
}

// CreateTestAssetWith creates a stock holding of 10 units at avgPrice on market.
func CreateTestAssetWith(t *testing.T, db *gorm.DB, userID, ticker, market, avgPrice string) *models.Asset {
	t.Helper()

	asset := &models.Asset{
		UserID:           userID,
		AssetType:        models.AssetTypeStock,
		Ticker:           ticker,
		Market:           market,
		Quantity:         decimal.NewFromInt(10),
		AvgPurchasePrice: decimal.RequireFromString(avgPrice),
		PurchaseDate:     time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Currency:         "USD",
	}
	if err := db.Create(asset).Error; err != nil {
		t.Fatalf("failed to create test asset: %v", err)
	}
	return asset
}

// CreateTestAlertRule creates an active absolute-price rule in the unknown state.
func CreateTestAlertRule(t *testing.T, db *gorm.DB, asset *models.Asset, alertType models.AlertType, target string) *models.AlertRule {
	t.Helper()

	rule := &models.AlertRule{
		UserID:      asset.UserID,
		AssetID:     asset.ID,
		AlertType:   alertType,
		TargetValue: decimal.RequireFromString(target),
		IsActive:    true,
		SideState:   models.SideUnknown,
		ActivatedAt: time.Now().UTC(),
		Version:     1,
	}
	if err := db.Create(rule).Error; err != nil {
		t.Fatalf("failed to create test alert rule: %v", err)
	}
	return rule
}

// CreateTestAlertEvent creates a history record for rule at price.
func CreateTestAlertEvent(t *testing.T, db *gorm.DB, rule *models.AlertRule, ticker, price string, sentAt time.Time) *models.AlertEvent {
	t.Helper()

	event := &models.AlertEvent{
		AlertID:      rule.ID,
		AssetID:      rule.AssetID,
		UserID:       rule.UserID,
		Ticker:       ticker,
		AlertType:    rule.AlertType,
		Message:      fmt.Sprintf("%s %s: test event", ticker, rule.AlertType.Label()),
		CurrentPrice: decimal.RequireFromString(price),
		Threshold:    rule.TargetValue,
		SentAt:       sentAt,
	}
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("failed to create test alert event: %v", err)
	}
	return event
}

// CreateTestNotification creates an unread notification not tied to any event.
func CreateTestNotification(t *testing.T, db *gorm.DB, userID string) *models.Notification {
	t.Helper()

	n := &models.Notification{
		UserID:  userID,
		Title:   fmt.Sprintf("Test Notification %d", nextID()),
		Message: "test",
	}
	if err := db.Create(n).Error; err != nil {
		t.Fatalf("failed to create test notification: %v", err)
	}
	return n
}
