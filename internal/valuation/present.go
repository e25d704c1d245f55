package valuation

import (
	"time"

	"investtracker/internal/models"

	"github.com/shopspring/decimal"
)

// Summary is the presentation form of a Portfolio's totals.
type Summary struct {
	TotalInvestment  decimal.Decimal `json:"total_investment"`
	CurrentValue     decimal.Decimal `json:"current_value"`
	TotalGainLoss    decimal.Decimal `json:"total_gain_loss"`
	TotalGainLossPct decimal.Decimal `json:"total_gain_loss_pct"`
	AssetsCount      int             `json:"assets_count"`
	PricedCount      int             `json:"priced_count"`
}

// AssetView is the presentation form of a Position.
type AssetView struct {
	ID               string              `json:"id"`
	AssetType        models.AssetType    `json:"asset_type"`
	Ticker           string              `json:"ticker"`
	Market           string              `json:"market"`
	Quantity         decimal.Decimal     `json:"quantity"`
	AvgPurchasePrice decimal.Decimal     `json:"avg_purchase_price"`
	PurchaseDate     time.Time           `json:"purchase_date"`
	Currency         string              `json:"currency"`
	TotalInvestment  decimal.Decimal     `json:"total_investment"`
	CurrentPrice     decimal.NullDecimal `json:"current_price"`
	CurrentValue     decimal.NullDecimal `json:"current_value"`
	GainLoss         decimal.NullDecimal `json:"gain_loss"`
	GainLossPct      decimal.NullDecimal `json:"gain_loss_pct"`
	Recommendation   Recommendation      `json:"recommendation"`
}

// Present rounds money and percentages to two places, half away from zero.
func (p *Portfolio) Present() Summary {
	return Summary{
		TotalInvestment:  p.TotalInvestment.Round(presentPrecision),
		CurrentValue:     p.CurrentValue.Round(presentPrecision),
		TotalGainLoss:    p.TotalGainLoss.Round(presentPrecision),
		TotalGainLossPct: p.TotalGainLossPct.Round(presentPrecision),
		AssetsCount:      p.AssetsCount,
		PricedCount:      p.PricedCount,
	}
}

// PresentAssets returns one rounded view per position, in input order.
func (p *Portfolio) PresentAssets() []AssetView {
	views := make([]AssetView, 0, len(p.Positions))
	for _, pos := range p.Positions {
		a := pos.Asset
		views = append(views, AssetView{
			ID:               a.ID,
			AssetType:        a.AssetType,
			Ticker:           a.Ticker,
			Market:           a.Market,
			Quantity:         a.Quantity,
			AvgPurchasePrice: a.AvgPurchasePrice,
			PurchaseDate:     a.PurchaseDate,
			Currency:         a.Currency,
			TotalInvestment:  pos.Investment.Round(presentPrecision),
			CurrentPrice:     pos.CurrentPrice,
			CurrentValue:     roundNull(pos.CurrentValue),
			GainLoss:         roundNull(pos.GainLoss),
			GainLossPct:      roundNull(pos.GainLossPct),
			Recommendation:   pos.Recommendation,
		})
	}
	return views
}

func roundNull(d decimal.NullDecimal) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	return decimal.NewNullDecimal(d.Decimal.Round(presentPrecision))
}
