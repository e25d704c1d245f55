// Package errors provides the error types returned by InvestTracker services.
// Service-layer errors use AppError so that handlers can answer with a stable
// code and message and never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches any AppError carrying the same code, so wrapped copies of a
// sentinel still satisfy errors.Is(err, ErrAssetNotFound).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrForbidden    = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Asset errors.
var (
	ErrAssetNotFound     = &AppError{Code: "ASSET_NOT_FOUND", Message: "Asset not found", StatusCode: http.StatusNotFound}
	ErrInvalidAssetType  = &AppError{Code: "INVALID_ASSET_TYPE", Message: "Asset type must be CEDEAR, Stock or Corporate-Bond", StatusCode: http.StatusBadRequest}
	ErrInvalidHolding    = &AppError{Code: "INVALID_HOLDING", Message: "Quantity and average purchase price must be positive", StatusCode: http.StatusBadRequest}
	ErrAssetImmutable    = &AppError{Code: "ASSET_IMMUTABLE", Message: "Asset is referenced by alert history; only quantity and price can be corrected", StatusCode: http.StatusConflict}
	ErrInvalidTicker     = &AppError{Code: "INVALID_TICKER", Message: "Ticker and market are required", StatusCode: http.StatusBadRequest}
	ErrInvalidPeriod     = &AppError{Code: "INVALID_PERIOD", Message: "Period must be one of 1d, 5d, 1mo, 3mo, 6mo, 1y", StatusCode: http.StatusBadRequest}
	ErrPriceUnavailable  = &AppError{Code: "PRICE_UNAVAILABLE", Message: "Price not available", StatusCode: http.StatusNotFound}
	ErrQuoteSourceFailed = &AppError{Code: "QUOTE_SOURCE_FAILED", Message: "Market data provider is unavailable", StatusCode: http.StatusBadGateway}
)

// Alert rule errors.
var (
	ErrAlertNotFound      = &AppError{Code: "ALERT_NOT_FOUND", Message: "Alert not found", StatusCode: http.StatusNotFound}
	ErrInvalidAlertType   = &AppError{Code: "INVALID_ALERT_TYPE", Message: "Alert type must be target_buy, target_sell, stop_loss or take_profit", StatusCode: http.StatusBadRequest}
	ErrInvalidTargetValue = &AppError{Code: "INVALID_TARGET_VALUE", Message: "Target value must be greater than zero", StatusCode: http.StatusBadRequest}
	ErrAlertConflict      = &AppError{Code: "ALERT_CONFLICT", Message: "Alert was modified concurrently, please retry", StatusCode: http.StatusConflict}
)

// Notification errors.
var (
	ErrNotificationNotFound = &AppError{Code: "NOTIFICATION_NOT_FOUND", Message: "Notification not found", StatusCode: http.StatusNotFound}
)

// Pipeline errors.
var (
	ErrCycleInProgress = &AppError{Code: "CYCLE_IN_PROGRESS", Message: "An evaluation cycle is already running", StatusCode: http.StatusConflict}
)
