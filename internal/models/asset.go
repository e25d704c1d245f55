package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetType represents the kind of instrument held.
type AssetType string

const (
	AssetTypeCEDEAR        AssetType = "CEDEAR"
	AssetTypeStock         AssetType = "Stock"
	AssetTypeCorporateBond AssetType = "Corporate-Bond"
)

// Valid reports whether t is one of the supported asset types.
func (t AssetType) Valid() bool {
	switch t {
	case AssetTypeCEDEAR, AssetTypeStock, AssetTypeCorporateBond:
		return true
	}
	return false
}

// Asset is a holding in an owner's portfolio.
type Asset struct {
	Base
	UserID           string          `gorm:"type:uuid;not null;index" json:"user_id"`
	AssetType        AssetType       `gorm:"not null" json:"asset_type"`
	Ticker           string          `gorm:"not null;index:idx_assets_quote_key" json:"ticker"`
	Market           string          `gorm:"not null;index:idx_assets_quote_key" json:"market"`
	Quantity         decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"quantity"`
	AvgPurchasePrice decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"avg_purchase_price"`
	PurchaseDate     time.Time       `gorm:"not null" json:"purchase_date"`
	Currency         string          `gorm:"size:3;not null" json:"currency"`
}

// Cost returns quantity * avg_purchase_price.
func (a *Asset) Cost() decimal.Decimal {
	return a.Quantity.Mul(a.AvgPurchasePrice)
}
