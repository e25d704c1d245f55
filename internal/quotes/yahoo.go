package quotes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

// marketSuffixes maps market codes to Yahoo Finance ticker suffixes.
// Markets not listed (NYSE, NASDAQ, ...) use the bare ticker.
var marketSuffixes = map[string]string{
	"BCBA": ".BA",
	"BYMA": ".BA",
	"MERV": ".BA",
	"BMV":  ".MX",
	"B3":   ".SA",
	"LSE":  ".L",
}

// yahooClient is the slice of the Yahoo Finance API the provider needs.
type yahooClient interface {
	price(symbol string) (tick, error)
	history(symbol, period, interval string) ([]bar, error)
}

// tick is the last regular-session trade. at is zero when Yahoo omits it.
type tick struct {
	price float64
	at    time.Time
}

type bar struct {
	date  time.Time
	close float64
}

// YahooProvider quotes CEDEARs, stocks and corporate bonds from Yahoo Finance.
type YahooProvider struct {
	client yahooClient
	now    func() time.Time
}

// NewYahooProvider creates a Yahoo Finance provider backed by go-yfinance.
func NewYahooProvider() *YahooProvider {
	return &YahooProvider{client: nativeClient{}, now: time.Now}
}

// Name returns the provider's display name.
func (p *YahooProvider) Name() string { return "Yahoo Finance" }

// Supports returns true for every asset type the portfolio tracks.
func (p *YahooProvider) Supports(assetType string) bool {
	switch assetType {
	case "CEDEAR", "Stock", "Corporate-Bond":
		return true
	default:
		return false
	}
}

// buildYahooSymbol converts a key to a Yahoo-compatible ticker. Tickers that
// already carry an exchange suffix are used as-is.
func buildYahooSymbol(key Key) string {
	if strings.Contains(key.Ticker, ".") {
		return key.Ticker
	}
	if suffix, ok := marketSuffixes[key.Market]; ok {
		return key.Ticker + suffix
	}
	return key.Ticker
}

// Get implements Source.
func (p *YahooProvider) Get(ctx context.Context, key Key) (Quote, error) {
	symbol := buildYahooSymbol(key)

	last, err := callWithContext(ctx, func() (tick, error) {
		return p.client.price(symbol)
	})
	if err != nil {
		return Quote{}, fmt.Errorf("yahoo quote %s: %w: %w", symbol, ErrQuoteUnavailable, err)
	}
	if last.price <= 0 {
		return Quote{}, fmt.Errorf("yahoo quote %s: non-positive price %v: %w", symbol, last.price, ErrQuoteUnavailable)
	}

	// ObservedAt is the exchange's trade time, so a halted or closed market
	// ages out under the caller's max-age policy.
	now := p.now()
	observed := last.at
	if observed.IsZero() || observed.After(now) {
		observed = now
	}

	return Quote{
		Key:        key,
		Price:      decimal.NewFromFloat(last.price),
		ObservedAt: observed.UTC(),
	}, nil
}

// History implements Source.
func (p *YahooProvider) History(ctx context.Context, key Key, period string) ([]Point, error) {
	if !ValidPeriod(period) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPeriod, period)
	}
	symbol := buildYahooSymbol(key)

	bars, err := callWithContext(ctx, func() ([]bar, error) {
		return p.client.history(symbol, period, intervalFor(period))
	})
	if err != nil {
		return nil, fmt.Errorf("yahoo history %s: %w: %w", symbol, ErrQuoteUnavailable, err)
	}

	points := make([]Point, 0, len(bars))
	for _, b := range bars {
		if b.close <= 0 {
			continue
		}
		points = append(points, Point{Date: b.date.UTC(), Price: decimal.NewFromFloat(b.close)})
	}
	return points, nil
}

// callWithContext runs fn, returning early if ctx ends first.
// go-yfinance calls are not context-aware.
func callWithContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// nativeClient implements yahooClient using go-yfinance.
type nativeClient struct{}

func (nativeClient) price(symbol string) (tick, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return tick{}, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	quote, err := t.Quote()
	if err != nil {
		return tick{}, err
	}
	if quote == nil {
		return tick{}, fmt.Errorf("empty quote")
	}
	return tick{price: quote.RegularMarketPrice, at: quote.RegularMarketTime}, nil
}

func (nativeClient) history(symbol, period, interval string) ([]bar, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	data, err := t.History(models.HistoryParams{
		Period:     period,
		Interval:   interval,
		AutoAdjust: true,
	})
	if err != nil {
		return nil, err
	}

	out := make([]bar, 0, len(data))
	for _, b := range data {
		out = append(out, bar{date: b.Date, close: b.Close})
	}
	return out, nil
}
