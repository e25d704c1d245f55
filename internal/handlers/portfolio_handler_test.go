package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"investtracker/internal/engine"
	apperrors "investtracker/internal/errors"
	"investtracker/internal/models"
	"investtracker/internal/quotes"
	"investtracker/internal/services"
	"investtracker/internal/valuation"
)

// --- mock portfolio service ---

type mockPortfolioService struct {
	getSummaryFn          func(ctx context.Context, userID string) (*valuation.Summary, error)
	getAssetsWithPricesFn func(ctx context.Context, userID string) ([]valuation.AssetView, error)
}

var _ services.PortfolioServicer = (*mockPortfolioService)(nil)

func (m *mockPortfolioService) GetSummary(ctx context.Context, userID string) (*valuation.Summary, error) {
	if m.getSummaryFn != nil {
		return m.getSummaryFn(ctx, userID)
	}
	return &valuation.Summary{}, nil
}

func (m *mockPortfolioService) GetAssetsWithPrices(ctx context.Context, userID string) ([]valuation.AssetView, error) {
	if m.getAssetsWithPricesFn != nil {
		return m.getAssetsWithPricesFn(ctx, userID)
	}
	return []valuation.AssetView{}, nil
}

// --- mock price service ---

type mockPriceService struct {
	getRecordedPricesFn func(ticker, market string, limit int) ([]models.PriceRecord, error)
	getCurrentPriceFn   func(ctx context.Context, key quotes.Key) (*quotes.Quote, error)
	getHistoryFn        func(ctx context.Context, key quotes.Key, period string) ([]quotes.Point, error)
}

var _ services.PriceServicer = (*mockPriceService)(nil)

func (m *mockPriceService) GetRecordedPrices(ticker, market string, limit int) ([]models.PriceRecord, error) {
	if m.getRecordedPricesFn != nil {
		return m.getRecordedPricesFn(ticker, market, limit)
	}
	return []models.PriceRecord{}, nil
}

func (m *mockPriceService) GetCurrentPrice(ctx context.Context, key quotes.Key) (*quotes.Quote, error) {
	if m.getCurrentPriceFn != nil {
		return m.getCurrentPriceFn(ctx, key)
	}
	return &quotes.Quote{Key: key}, nil
}

func (m *mockPriceService) GetHistory(ctx context.Context, key quotes.Key, period string) ([]quotes.Point, error) {
	if m.getHistoryFn != nil {
		return m.getHistoryFn(ctx, key, period)
	}
	return []quotes.Point{}, nil
}

// --- mock runner ---

type mockRunner struct {
	runCycleFn func(ctx context.Context) (*engine.CycleResult, error)
}

func (m *mockRunner) RunCycle(ctx context.Context) (*engine.CycleResult, error) {
	return m.runCycleFn(ctx)
}

// --- tests ---

func TestPortfolioHandler_GetSummary(t *testing.T) {
	svc := &mockPortfolioService{
		getSummaryFn: func(_ context.Context, userID string) (*valuation.Summary, error) {
			if userID != testUserID {
				t.Errorf("expected owner %s, got %s", testUserID, userID)
			}
			return &valuation.Summary{
				TotalInvestment:  decimal.NewFromInt(10500),
				CurrentValue:     decimal.NewFromInt(10100),
				TotalGainLoss:    decimal.NewFromInt(-400),
				TotalGainLossPct: decimal.RequireFromString("-3.81"),
				AssetsCount:      2,
				PricedCount:      2,
			}, nil
		},
	}
	r := gin.New()
	r.GET("/portfolio/summary", injectUserID(testUserID), NewPortfolioHandler(svc).GetSummary)

	rec := doRequest(r, "GET", "/portfolio/summary", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	if result["total_gain_loss"] != "-400" {
		t.Errorf("expected total_gain_loss -400, got %v", result["total_gain_loss"])
	}
	if result["total_gain_loss_pct"] != "-3.81" {
		t.Errorf("expected pct -3.81, got %v", result["total_gain_loss_pct"])
	}
}

func TestPortfolioHandler_GetAssets(t *testing.T) {
	svc := &mockPortfolioService{
		getAssetsWithPricesFn: func(context.Context, string) ([]valuation.AssetView, error) {
			return []valuation.AssetView{{Recommendation: valuation.RecommendPriceUnavailable}}, nil
		},
	}
	r := gin.New()
	r.GET("/portfolio/assets", injectUserID(testUserID), NewPortfolioHandler(svc).GetAssets)

	rec := doRequest(r, "GET", "/portfolio/assets", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if assets := parseJSON(t, rec)["assets"].([]interface{}); len(assets) != 1 {
		t.Errorf("expected 1 asset, got %d", len(assets))
	}
}

func setupPriceRouter(handler *PriceHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.GET("/prices/:ticker", handler.GetRecordedPrices)
	auth.GET("/prices/:ticker/current", handler.GetCurrentPrice)
	auth.GET("/prices/:ticker/history", handler.GetHistory)
	return r
}

func TestPriceHandler_GetCurrentPrice(t *testing.T) {
	t.Run("defaults_asset_type", func(t *testing.T) {
		var got quotes.Key
		svc := &mockPriceService{
			getCurrentPriceFn: func(_ context.Context, key quotes.Key) (*quotes.Quote, error) {
				got = key
				return &quotes.Quote{Key: key, Price: decimal.RequireFromString("61.2"), ObservedAt: time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC)}, nil
			},
		}
		r := setupPriceRouter(NewPriceHandler(svc))

		rec := doRequest(r, "GET", "/prices/ko/current?market=nyse", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got != quotes.NewKey("KO", "NYSE", "Stock") {
			t.Errorf("unexpected key %+v", got)
		}
		result := parseJSON(t, rec)
		if result["price"] != "61.2" || result["observed_at"] != "2025-03-01T15:00:00Z" {
			t.Errorf("unexpected body: %v", result)
		}
	})

	t.Run("returns_400_without_market", func(t *testing.T) {
		r := setupPriceRouter(NewPriceHandler(&mockPriceService{}))
		rec := doRequest(r, "GET", "/prices/KO/current", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns_404_when_unavailable", func(t *testing.T) {
		svc := &mockPriceService{
			getCurrentPriceFn: func(context.Context, quotes.Key) (*quotes.Quote, error) {
				return nil, apperrors.Wrap(apperrors.ErrPriceUnavailable, quotes.ErrQuoteUnavailable)
			},
		}
		r := setupPriceRouter(NewPriceHandler(svc))
		rec := doRequest(r, "GET", "/prices/KO/current?market=NYSE", "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "PRICE_UNAVAILABLE")
	})
}

func TestPriceHandler_GetHistory(t *testing.T) {
	t.Run("default_period", func(t *testing.T) {
		var gotPeriod string
		svc := &mockPriceService{
			getHistoryFn: func(_ context.Context, _ quotes.Key, period string) ([]quotes.Point, error) {
				gotPeriod = period
				return []quotes.Point{{Date: time.Now(), Price: decimal.NewFromInt(1)}}, nil
			},
		}
		r := setupPriceRouter(NewPriceHandler(svc))

		rec := doRequest(r, "GET", "/prices/GGAL/history?market=BCBA&asset_type=CEDEAR", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotPeriod != "1mo" {
			t.Errorf("expected 1mo, got %q", gotPeriod)
		}
	})

	t.Run("returns_400_invalid_period", func(t *testing.T) {
		r := setupPriceRouter(NewPriceHandler(&mockPriceService{}))
		rec := doRequest(r, "GET", "/prices/KO/history?market=NYSE&period=10y", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_PERIOD")
	})
}

func TestPriceHandler_GetRecordedPrices(t *testing.T) {
	var gotLimit int
	svc := &mockPriceService{
		getRecordedPricesFn: func(ticker, market string, limit int) ([]models.PriceRecord, error) {
			gotLimit = limit
			return []models.PriceRecord{{Ticker: ticker, Market: market}}, nil
		},
	}
	r := setupPriceRouter(NewPriceHandler(svc))

	rec := doRequest(r, "GET", "/prices/KO?market=NYSE&limit=5", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotLimit != 5 {
		t.Errorf("expected limit 5, got %d", gotLimit)
	}
}

func TestPipelineHandler_Evaluate(t *testing.T) {
	tests := []struct {
		name       string
		runErr     error
		wantStatus int
		wantCode   string
	}{
		{name: "success", wantStatus: http.StatusOK},
		{name: "cycle_in_progress", runErr: engine.ErrCycleInProgress, wantStatus: http.StatusConflict, wantCode: "CYCLE_IN_PROGRESS"},
		{name: "load_failure", runErr: errors.New("db down"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{runCycleFn: func(context.Context) (*engine.CycleResult, error) {
				if tt.runErr != nil {
					return nil, tt.runErr
				}
				return &engine.CycleResult{RulesLoaded: 3, Fired: 1, DurationMS: 12}, nil
			}}
			r := gin.New()
			r.POST("/pipeline/evaluate", NewPipelineHandler(runner).Evaluate)

			rec := doRequest(r, "POST", "/pipeline/evaluate", "")

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			result := parseJSON(t, rec)
			if tt.wantCode != "" {
				assertErrorCode(t, result, tt.wantCode)
				return
			}
			if result["fired"].(float64) != 1 || result["rules_loaded"].(float64) != 3 {
				t.Errorf("unexpected report: %v", result)
			}
		})
	}
}
