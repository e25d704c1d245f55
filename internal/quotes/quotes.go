// Package quotes fetches market prices for portfolio assets from external providers.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrQuoteUnavailable is returned when no usable price exists for a key.
// Callers treat it as "no quote" for the key, never as a cycle failure.
var ErrQuoteUnavailable = errors.New("quote unavailable")

// ErrUnsupportedPeriod is returned by History for an unknown period.
var ErrUnsupportedPeriod = errors.New("unsupported history period")

// Key identifies one quotable instrument. Assets and rules sharing a key share one fetch.
type Key struct {
	Ticker    string
	Market    string
	AssetType string
}

// NewKey normalizes ticker and market to upper case.
func NewKey(ticker, market, assetType string) Key {
	return Key{
		Ticker:    strings.ToUpper(strings.TrimSpace(ticker)),
		Market:    strings.ToUpper(strings.TrimSpace(market)),
		AssetType: assetType,
	}
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return fmt.Sprintf("%s@%s(%s)", k.Ticker, k.Market, k.AssetType)
}

// Quote is a price observation for a key.
type Quote struct {
	Key        Key
	Price      decimal.Decimal
	ObservedAt time.Time
}

// Fresh reports whether q was observed within maxAge of now.
// A zero maxAge disables the check.
func (q Quote) Fresh(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return true
	}
	return now.Sub(q.ObservedAt) <= maxAge
}

// Point is one bar of a historical series.
type Point struct {
	Date  time.Time       `json:"date"`
	Price decimal.Decimal `json:"price"`
}

// Source is the market data collaborator.
type Source interface {
	// Get returns the latest quote for key, or an error wrapping ErrQuoteUnavailable.
	Get(ctx context.Context, key Key) (Quote, error)

	// History returns the closing-price series for key over period.
	History(ctx context.Context, key Key, period string) ([]Point, error)
}

// FetchError represents a failed quote fetch for one key.
type FetchError struct {
	Key Key
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch quote for %s: %v", e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error { return e.Err }

// Periods lists the accepted History periods in display order.
var Periods = []string{"1d", "5d", "1mo", "3mo", "6mo", "1y"}

// ValidPeriod reports whether p is an accepted History period.
func ValidPeriod(p string) bool {
	for _, v := range Periods {
		if v == p {
			return true
		}
	}
	return false
}

// intervalFor picks the bar size for a period: intraday bars for short windows.
func intervalFor(period string) string {
	switch period {
	case "1d":
		return "5m"
	case "5d":
		return "30m"
	default:
		return "1d"
	}
}
