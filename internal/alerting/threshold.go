// Package alerting decides, for one rule and one price, whether an alert fires.
//
// A rule fires only when the price crosses its threshold from the armed side,
// and only once per activation: firing deactivates the rule. The first
// observation after creation or reactivation only records which side of the
// threshold the price is on.
package alerting

import (
	"investtracker/internal/models"

	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// FiresBelow reports whether rules of type t fire when the price falls to the
// threshold (target_buy, stop_loss) rather than rises to it.
func FiresBelow(t models.AlertType) bool {
	return t == models.AlertTypeTargetBuy || t == models.AlertTypeStopLoss
}

// ArmedSide is the side the price must be on before a crossing counts.
func ArmedSide(t models.AlertType) models.SideState {
	if FiresBelow(t) {
		return models.SideAbove
	}
	return models.SideBelow
}

// Threshold returns the absolute trigger price for rule on asset.
// Percentage rules are relative to the asset's average purchase price.
func Threshold(rule *models.AlertRule, asset *models.Asset) decimal.Decimal {
	if !rule.IsPercentage {
		return rule.TargetValue
	}
	pct := rule.TargetValue.Div(hundred)
	if FiresBelow(rule.AlertType) {
		return asset.AvgPurchasePrice.Mul(one.Sub(pct))
	}
	return asset.AvgPurchasePrice.Mul(one.Add(pct))
}

// sideOf classifies price against threshold. A price equal to the threshold
// is on the firing side.
func sideOf(t models.AlertType, price, threshold decimal.Decimal) models.SideState {
	if FiresBelow(t) {
		if price.GreaterThan(threshold) {
			return models.SideAbove
		}
		return models.SideBelow
	}
	if price.LessThan(threshold) {
		return models.SideBelow
	}
	return models.SideAbove
}
