package alerting

import (
	"testing"

	"investtracker/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$1,234.57", FormatMoney(d("1234.567"), "USD"))
	assert.Equal(t, "$0.10", FormatMoney(d("0.1"), "usd"))
	assert.Equal(t, "12.50 XXZ", FormatMoney(d("12.5"), "XXZ"))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Alert: GGAL - Stop Loss", Title(models.AlertTypeStopLoss, "ggal"))
}

func TestMessage_PercentageThreshold(t *testing.T) {
	a := testAsset("200")
	rule := &models.AlertRule{AlertType: models.AlertTypeTakeProfit, TargetValue: d("10"), IsPercentage: true}
	msg := Message(rule.AlertType, a, d("221"), Threshold(rule, a))
	assert.Equal(t, "KO Take Profit: price reached take profit at $221.00 (threshold $220.00)", msg)
}
