// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"investtracker/internal/models"
	"investtracker/internal/quotes"
)

var (
	tickerRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.\-]{0,19}$`)
	marketRegex = regexp.MustCompile(`^[A-Za-z0-9]{1,10}$`)
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("iso4217", validateISO4217)
		_ = v.RegisterValidation("asset_type", validateAssetType)
		_ = v.RegisterValidation("alert_type", validateAlertType)
		_ = v.RegisterValidation("history_period", validateHistoryPeriod)
		_ = v.RegisterValidation("ticker", validateTicker)
		_ = v.RegisterValidation("market", validateMarket)
	}
}

// validateISO4217 accepts any currency code go-money knows about.
func validateISO4217(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	return len(code) == 3 && code == strings.ToUpper(code) && money.GetCurrency(code) != nil
}

func validateAssetType(fl validator.FieldLevel) bool {
	return models.AssetType(fl.Field().String()).Valid()
}

func validateAlertType(fl validator.FieldLevel) bool {
	return models.AlertType(fl.Field().String()).Valid()
}

func validateHistoryPeriod(fl validator.FieldLevel) bool {
	return quotes.ValidPeriod(fl.Field().String())
}

func validateTicker(fl validator.FieldLevel) bool {
	return tickerRegex.MatchString(fl.Field().String())
}

func validateMarket(fl validator.FieldLevel) bool {
	return marketRegex.MatchString(fl.Field().String())
}
