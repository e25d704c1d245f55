package models

import (
	"time"

	"investtracker/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PriceRecord is a quote observed by an evaluation cycle.
// Immutable time-series data: no Base embed, no soft deletes.
type PriceRecord struct {
	ID         string          `gorm:"type:uuid;primaryKey" json:"id"`
	Ticker     string          `gorm:"not null;uniqueIndex:uq_price_records_key_time" json:"ticker"`
	Market     string          `gorm:"not null;uniqueIndex:uq_price_records_key_time" json:"market"`
	AssetType  AssetType       `gorm:"not null;uniqueIndex:uq_price_records_key_time" json:"asset_type"`
	Price      decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"price"`
	RecordedAt time.Time       `gorm:"not null;uniqueIndex:uq_price_records_key_time" json:"recorded_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (p *PriceRecord) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New()
	}
	return nil
}
