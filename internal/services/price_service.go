package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "investtracker/internal/errors"
	"investtracker/internal/models"
	"investtracker/internal/quotes"
)

const (
	defaultPriceLimit = 100
	maxPriceLimit     = 1000
)

// priceService serves recorded and live market prices.
type priceService struct {
	db     *gorm.DB
	source quotes.Source
}

// NewPriceService creates a new PriceServicer.
func NewPriceService(db *gorm.DB, source quotes.Source) PriceServicer {
	return &priceService{db: db, source: source}
}

// GetRecordedPrices returns prices recorded by evaluation cycles, newest first.
// An empty market matches every market.
func (s *priceService) GetRecordedPrices(ticker, market string, limit int) ([]models.PriceRecord, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, apperrors.ErrInvalidTicker
	}
	if limit <= 0 {
		limit = defaultPriceLimit
	}
	limit = min(limit, maxPriceLimit)

	q := s.db.Where("ticker = ?", ticker)
	if market = strings.ToUpper(strings.TrimSpace(market)); market != "" {
		q = q.Where("market = ?", market)
	}

	var records []models.PriceRecord
	if err := q.Order("recorded_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return records, nil
}

// GetCurrentPrice fetches a live quote.
func (s *priceService) GetCurrentPrice(ctx context.Context, key quotes.Key) (*quotes.Quote, error) {
	if key.Ticker == "" || key.Market == "" {
		return nil, apperrors.ErrInvalidTicker
	}
	q, err := s.source.Get(ctx, key)
	if err != nil {
		return nil, quoteError(err)
	}
	return &q, nil
}

// GetHistory fetches a closing-price series for period.
func (s *priceService) GetHistory(ctx context.Context, key quotes.Key, period string) ([]quotes.Point, error) {
	if key.Ticker == "" || key.Market == "" {
		return nil, apperrors.ErrInvalidTicker
	}
	if !quotes.ValidPeriod(period) {
		return nil, apperrors.ErrInvalidPeriod
	}
	points, err := s.source.History(ctx, key, period)
	if err != nil {
		return nil, quoteError(err)
	}
	if points == nil {
		points = []quotes.Point{}
	}
	return points, nil
}

func quoteError(err error) error {
	switch {
	case errors.Is(err, quotes.ErrUnsupportedPeriod):
		return apperrors.ErrInvalidPeriod
	case errors.Is(err, quotes.ErrQuoteUnavailable):
		return apperrors.Wrap(apperrors.ErrPriceUnavailable, err)
	default:
		return apperrors.Wrap(apperrors.ErrQuoteSourceFailed, err)
	}
}
