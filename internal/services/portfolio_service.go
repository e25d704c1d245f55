package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "investtracker/internal/errors"
	"investtracker/internal/logger"
	"investtracker/internal/models"
	"investtracker/internal/quotes"
	"investtracker/internal/valuation"
)

// PortfolioOptions bounds the live quote fetches of a portfolio read.
type PortfolioOptions struct {
	QuoteConcurrency int
	QuoteTimeout     time.Duration
	// QuoteMaxAge is how old a recorded price may be to stand in for a missing live quote.
	QuoteMaxAge time.Duration
}

// getLatestPrices fetches the most recent recorded price, no older than since,
// for each key. Keys with no recent record are not included in the map.
func getLatestPrices(db *gorm.DB, keys []quotes.Key, since time.Time) (map[quotes.Key]decimal.Decimal, error) {
	if len(keys) == 0 {
		return map[quotes.Key]decimal.Decimal{}, nil
	}

	tickers := make([]string, 0, len(keys))
	wanted := make(map[quotes.Key]bool, len(keys))
	for _, k := range keys {
		tickers = append(tickers, k.Ticker)
		wanted[k] = true
	}

	type priceRow struct {
		Ticker    string
		Market    string
		AssetType string
		Price     decimal.Decimal
	}
	var rows []priceRow

	subq := db.Table("price_records").
		Select("ticker, market, asset_type, MAX(recorded_at) AS max_recorded").
		Where("ticker IN ? AND recorded_at >= ?", tickers, since).
		Group("ticker, market, asset_type")

	if err := db.Table("price_records pr").
		Select("pr.ticker, pr.market, pr.asset_type, pr.price").
		Joins("INNER JOIN (?) latest ON pr.ticker = latest.ticker AND pr.market = latest.market AND pr.asset_type = latest.asset_type AND pr.recorded_at = latest.max_recorded", subq).
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := make(map[quotes.Key]decimal.Decimal, len(rows))
	for _, r := range rows {
		k := quotes.Key{Ticker: r.Ticker, Market: r.Market, AssetType: r.AssetType}
		if wanted[k] {
			result[k] = r.Price
		}
	}
	return result, nil
}

// portfolioService values an owner's holdings at live prices.
type portfolioService struct {
	db     *gorm.DB
	source quotes.Source
	opts   PortfolioOptions
	now    func() time.Time
}

// NewPortfolioService creates a new PortfolioServicer.
func NewPortfolioService(db *gorm.DB, source quotes.Source, opts PortfolioOptions) PortfolioServicer {
	return &portfolioService{
		db:     db,
		source: source,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetSummary returns the owner's portfolio totals.
func (s *portfolioService) GetSummary(ctx context.Context, userID string) (*valuation.Summary, error) {
	p, err := s.evaluate(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := p.Present()
	return &summary, nil
}

// GetAssetsWithPrices returns every asset of the owner with its valuation.
func (s *portfolioService) GetAssetsWithPrices(ctx context.Context, userID string) ([]valuation.AssetView, error) {
	p, err := s.evaluate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p.PresentAssets(), nil
}

func (s *portfolioService) evaluate(ctx context.Context, userID string) (*valuation.Portfolio, error) {
	var assets []models.Asset
	if err := s.db.Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	prices, err := s.prices(ctx, assets)
	if err != nil {
		return nil, err
	}

	p, err := valuation.Evaluate(assets, func(a *models.Asset) (decimal.Decimal, bool) {
		price, ok := prices[quotes.NewKey(a.Ticker, a.Market, string(a.AssetType))]
		return price, ok
	})
	if err != nil {
		if errors.Is(err, valuation.ErrInvalidHolding) {
			return nil, apperrors.Wrap(apperrors.ErrInvalidHolding, err)
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return p, nil
}

// prices fetches live quotes for the assets' keys and fills gaps from recorded prices.
func (s *portfolioService) prices(ctx context.Context, assets []models.Asset) (map[quotes.Key]decimal.Decimal, error) {
	seen := make(map[quotes.Key]bool)
	var keys []quotes.Key
	for _, a := range assets {
		k := quotes.NewKey(a.Ticker, a.Market, string(a.AssetType))
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	prices := make(map[quotes.Key]decimal.Decimal, len(keys))
	if len(keys) == 0 {
		return prices, nil
	}

	now := s.now()
	batch := quotes.FetchAll(ctx, s.source, keys, s.opts.QuoteConcurrency, s.opts.QuoteTimeout)
	for k, q := range batch.Quotes {
		if q.Fresh(now, s.opts.QuoteMaxAge) {
			prices[k] = q.Price
		}
	}

	var missing []quotes.Key
	for _, k := range keys {
		if _, ok := prices[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return prices, nil
	}

	since := time.Time{}
	if s.opts.QuoteMaxAge > 0 {
		since = now.Add(-s.opts.QuoteMaxAge)
	}
	recorded, err := getLatestPrices(s.db, missing, since)
	if err != nil {
		return nil, err
	}
	for k, p := range recorded {
		prices[k] = p
	}
	if left := len(missing) - len(recorded); left > 0 {
		logger.Get().Debugw("portfolio valued without prices for some assets", "missing", left)
	}
	return prices, nil
}
