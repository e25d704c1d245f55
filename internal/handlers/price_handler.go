package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"investtracker/internal/models"
	"investtracker/internal/quotes"
	"investtracker/internal/services"
)

const defaultHistoryPeriod = "1mo"

// PriceHandler serves recorded and live market prices.
type PriceHandler struct {
	priceService services.PriceServicer
}

// NewPriceHandler creates a new PriceHandler.
func NewPriceHandler(priceService services.PriceServicer) *PriceHandler {
	return &PriceHandler{priceService: priceService}
}

// RecordedPricesQuery holds the query parameters for recorded prices.
type RecordedPricesQuery struct {
	Market string `form:"market" binding:"omitempty,market"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// QuoteQuery identifies the instrument of a live price request.
type QuoteQuery struct {
	Market    string           `form:"market" binding:"required,market"`
	AssetType models.AssetType `form:"asset_type" binding:"omitempty,asset_type"`
	Period    string           `form:"period" binding:"omitempty,history_period"`
}

func (q QuoteQuery) key(ticker string) quotes.Key {
	assetType := q.AssetType
	if assetType == "" {
		assetType = models.AssetTypeStock
	}
	return quotes.NewKey(ticker, q.Market, string(assetType))
}

// QuoteResponse is a live quote.
type QuoteResponse struct {
	Ticker     string `json:"ticker"`
	Market     string `json:"market"`
	AssetType  string `json:"asset_type"`
	Price      string `json:"price"`
	ObservedAt string `json:"observed_at"`
}

// GetRecordedPrices handles listing prices recorded by evaluation cycles.
// @Summary     Recorded prices
// @Tags        prices
// @Produce     json
// @Security    BearerAuth
// @Param       ticker path  string true  "Ticker"
// @Param       market query string false "Market"
// @Param       limit  query int    false "Maximum rows (default 100)"
// @Success     200 {object} map[string][]models.PriceRecord "Recorded prices, newest first"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /prices/{ticker} [get]
func (h *PriceHandler) GetRecordedPrices(c *gin.Context) {
	var q RecordedPricesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	records, err := h.priceService.GetRecordedPrices(c.Param("ticker"), q.Market, q.Limit)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"prices": records})
}

// GetCurrentPrice handles fetching a live quote.
// @Summary     Current price
// @Tags        prices
// @Produce     json
// @Security    BearerAuth
// @Param       ticker     path  string true  "Ticker"
// @Param       market     query string true  "Market"
// @Param       asset_type query string false "Asset type (default Stock)"
// @Success     200 {object} QuoteResponse "Live quote"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Price not available"
// @Failure     502 {object} ErrorResponse "Market data provider unavailable"
// @Router      /prices/{ticker}/current [get]
func (h *PriceHandler) GetCurrentPrice(c *gin.Context) {
	var q QuoteQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	quote, err := h.priceService.GetCurrentPrice(c.Request.Context(), q.key(c.Param("ticker")))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, QuoteResponse{
		Ticker:     quote.Key.Ticker,
		Market:     quote.Key.Market,
		AssetType:  quote.Key.AssetType,
		Price:      quote.Price.String(),
		ObservedAt: quote.ObservedAt.UTC().Format(time.RFC3339),
	})
}

// GetHistory handles fetching a closing-price series.
// @Summary     Price history
// @Tags        prices
// @Produce     json
// @Security    BearerAuth
// @Param       ticker     path  string true  "Ticker"
// @Param       market     query string true  "Market"
// @Param       asset_type query string false "Asset type (default Stock)"
// @Param       period     query string false "1d, 5d, 1mo, 3mo, 6mo or 1y (default 1mo)"
// @Success     200 {object} map[string]interface{} "Price series"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Price not available"
// @Router      /prices/{ticker}/history [get]
func (h *PriceHandler) GetHistory(c *gin.Context) {
	var q QuoteQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindingError(err))
		return
	}
	period := q.Period
	if period == "" {
		period = defaultHistoryPeriod
	}

	key := q.key(c.Param("ticker"))
	points, err := h.priceService.GetHistory(c.Request.Context(), key, period)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ticker": key.Ticker,
		"market": key.Market,
		"period": period,
		"points": points,
	})
}
