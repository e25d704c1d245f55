package alerting

import (
	"fmt"
	"strings"

	"investtracker/internal/models"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var reasons = map[models.AlertType]string{
	models.AlertTypeTargetBuy:  "price fell to buy target",
	models.AlertTypeTargetSell: "price rose to sell target",
	models.AlertTypeStopLoss:   "price dropped to stop loss",
	models.AlertTypeTakeProfit: "price reached take profit",
}

// Message builds the text stored on the alert event and its notification.
func Message(t models.AlertType, asset *models.Asset, price, threshold decimal.Decimal) string {
	return fmt.Sprintf("%s %s: %s at %s (threshold %s)",
		strings.ToUpper(asset.Ticker),
		t.Label(),
		reasons[t],
		FormatMoney(price, asset.Currency),
		FormatMoney(threshold, asset.Currency),
	)
}

// Title is the notification title for a fired rule.
func Title(t models.AlertType, ticker string) string {
	return fmt.Sprintf("Alert: %s - %s", strings.ToUpper(ticker), t.Label())
}

// FormatMoney renders amount in the currency's display format, rounded to
// its minor unit. Unknown currencies fall back to a plain two-place number.
func FormatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(strings.ToUpper(currency))
	if cur == nil {
		return amount.StringFixed(2) + " " + strings.ToUpper(currency)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}
