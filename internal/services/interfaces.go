package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"investtracker/internal/models"
	"investtracker/internal/pagination"
	"investtracker/internal/quotes"
	"investtracker/internal/valuation"
)

// AssetInput holds the fields of a new holding.
type AssetInput struct {
	AssetType        models.AssetType
	Ticker           string
	Market           string
	Quantity         decimal.Decimal
	AvgPurchasePrice decimal.Decimal
	PurchaseDate     time.Time
	Currency         string
}

// AssetUpdate holds optional changes to a holding. Nil fields are left unchanged.
type AssetUpdate struct {
	AssetType        *models.AssetType
	Ticker           *string
	Market           *string
	Quantity         *decimal.Decimal
	AvgPurchasePrice *decimal.Decimal
	PurchaseDate     *time.Time
	Currency         *string
}

// AssetServicer defines the contract for asset-related business logic.
type AssetServicer interface {
	CreateAsset(userID string, in AssetInput) (*models.Asset, error)
	GetUserAssets(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Asset], error)
	GetAssetByID(userID, assetID string) (*models.Asset, error)
	UpdateAsset(userID, assetID string, in AssetUpdate) (*models.Asset, error)
	DeleteAsset(userID, assetID string) error
}

// AlertInput holds the fields of a new alert rule.
type AlertInput struct {
	AssetID      string
	AlertType    models.AlertType
	TargetValue  decimal.Decimal
	IsPercentage bool
	IsActive     *bool
}

// AlertUpdate holds optional changes to an alert rule. Nil fields are left unchanged.
type AlertUpdate struct {
	AlertType    *models.AlertType
	TargetValue  *decimal.Decimal
	IsPercentage *bool
	IsActive     *bool
}

// AlertServicer defines the contract for alert-rule business logic.
type AlertServicer interface {
	CreateAlert(userID string, in AlertInput) (*models.AlertRule, error)
	GetUserAlerts(userID string, page pagination.PageRequest, isActive *bool) (*pagination.PageResponse[models.AlertRule], error)
	GetAssetAlerts(userID, assetID string) ([]models.AlertRule, error)
	GetAlertByID(userID, alertID string) (*models.AlertRule, error)
	UpdateAlert(userID, alertID string, in AlertUpdate) (*models.AlertRule, error)
	ToggleAlert(userID, alertID string) (*models.AlertRule, error)
	DeleteAlert(userID, alertID string) error
}

// AlertHistoryServicer defines the contract for reading fired-alert history.
type AlertHistoryServicer interface {
	GetUserHistory(userID string, page pagination.PageRequest, assetID *string) (*pagination.PageResponse[models.AlertEvent], error)
}

// NotificationServicer defines the contract for in-app notifications.
type NotificationServicer interface {
	Record(tx *gorm.DB, event *models.AlertEvent, title string) (*models.Notification, error)
	CreateTestNotification(userID string) (*models.Notification, error)
	GetUserNotifications(userID string, page pagination.PageRequest, unreadOnly bool) (*pagination.PageResponse[models.Notification], error)
	UnreadCount(userID string) (int64, error)
	MarkRead(userID, notificationID string) error
	MarkAllRead(userID string) (int64, error)
	DeleteNotification(userID, notificationID string) error
}

// PortfolioServicer defines the contract for valuing an owner's holdings.
type PortfolioServicer interface {
	GetSummary(ctx context.Context, userID string) (*valuation.Summary, error)
	GetAssetsWithPrices(ctx context.Context, userID string) ([]valuation.AssetView, error)
}

// PriceServicer defines the contract for market prices.
type PriceServicer interface {
	GetRecordedPrices(ticker, market string, limit int) ([]models.PriceRecord, error)
	GetCurrentPrice(ctx context.Context, key quotes.Key) (*quotes.Quote, error)
	GetHistory(ctx context.Context, key quotes.Key, period string) ([]quotes.Point, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
}
