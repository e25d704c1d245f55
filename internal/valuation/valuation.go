// Package valuation computes portfolio value and gain/loss from holdings and quotes.
// It performs no I/O.
package valuation

import (
	"errors"
	"fmt"

	"investtracker/internal/models"

	"github.com/shopspring/decimal"
)

// ErrInvalidHolding is returned for an asset with non-positive quantity or purchase price.
var ErrInvalidHolding = errors.New("invalid holding")

// Recommendation is the advisory label attached to each position.
type Recommendation string

const (
	RecommendConsiderSelling  Recommendation = "consider_selling"
	RecommendReviewPosition   Recommendation = "review_position"
	RecommendHold             Recommendation = "hold"
	RecommendPriceUnavailable Recommendation = "price_unavailable"
)

var (
	hundred          = decimal.NewFromInt(100)
	sellAbovePct     = decimal.NewFromInt(20)
	reviewBelowPct   = decimal.NewFromInt(-10)
	presentPrecision = int32(2)
)

// PriceLookup returns the current price for an asset, or false if none is known.
type PriceLookup func(asset *models.Asset) (decimal.Decimal, bool)

// Position is the valuation of one asset. Price-derived fields are invalid
// (NullDecimal.Valid == false) when no price is known.
type Position struct {
	Asset          *models.Asset
	Investment     decimal.Decimal
	CurrentPrice   decimal.NullDecimal
	CurrentValue   decimal.NullDecimal
	GainLoss       decimal.NullDecimal
	GainLossPct    decimal.NullDecimal
	Recommendation Recommendation
}

// Portfolio is the aggregate valuation of an owner's assets.
type Portfolio struct {
	Positions        []Position
	TotalInvestment  decimal.Decimal
	CurrentValue     decimal.Decimal
	TotalGainLoss    decimal.Decimal
	TotalGainLossPct decimal.Decimal
	AssetsCount      int
	PricedCount      int
}

// Evaluate values each asset at the price returned by lookup.
//
// Assets without a price count toward TotalInvestment but are excluded from
// CurrentValue and TotalGainLoss. TotalGainLossPct is relative to the cost of
// priced assets only. No rounding is applied; see Present.
func Evaluate(assets []models.Asset, lookup PriceLookup) (*Portfolio, error) {
	p := &Portfolio{
		Positions:   make([]Position, 0, len(assets)),
		AssetsCount: len(assets),
	}
	pricedCost := decimal.Zero

	for i := range assets {
		a := &assets[i]
		if !a.Quantity.IsPositive() || !a.AvgPurchasePrice.IsPositive() {
			return nil, fmt.Errorf("asset %s (%s): %w", a.ID, a.Ticker, ErrInvalidHolding)
		}

		pos := Position{Asset: a, Investment: a.Cost()}
		p.TotalInvestment = p.TotalInvestment.Add(pos.Investment)

		price, ok := lookup(a)
		if !ok || !price.IsPositive() {
			pos.Recommendation = RecommendPriceUnavailable
			p.Positions = append(p.Positions, pos)
			continue
		}

		value := a.Quantity.Mul(price)
		gain := a.Quantity.Mul(price.Sub(a.AvgPurchasePrice))
		pct := price.Div(a.AvgPurchasePrice).Sub(decimal.NewFromInt(1)).Mul(hundred)

		pos.CurrentPrice = decimal.NewNullDecimal(price)
		pos.CurrentValue = decimal.NewNullDecimal(value)
		pos.GainLoss = decimal.NewNullDecimal(gain)
		pos.GainLossPct = decimal.NewNullDecimal(pct)
		pos.Recommendation = recommend(pct)

		p.CurrentValue = p.CurrentValue.Add(value)
		p.TotalGainLoss = p.TotalGainLoss.Add(gain)
		pricedCost = pricedCost.Add(pos.Investment)
		p.PricedCount++
		p.Positions = append(p.Positions, pos)
	}

	if pricedCost.IsPositive() {
		p.TotalGainLossPct = p.TotalGainLoss.Div(pricedCost).Mul(hundred)
	}
	return p, nil
}

func recommend(pct decimal.Decimal) Recommendation {
	switch {
	case pct.GreaterThan(sellAbovePct):
		return RecommendConsiderSelling
	case pct.LessThan(reviewBelowPct):
		return RecommendReviewPosition
	default:
		return RecommendHold
	}
}
