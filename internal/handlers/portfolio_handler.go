package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"investtracker/internal/services"
)

// PortfolioHandler serves portfolio valuations.
type PortfolioHandler struct {
	portfolioService services.PortfolioServicer
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioService services.PortfolioServicer) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: portfolioService}
}

// GetSummary handles valuing the whole portfolio.
// @Summary     Portfolio summary
// @Description Totals over all holdings. Holdings without a price count toward investment only.
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} valuation.Summary "Portfolio totals"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /portfolio/summary [get]
func (h *PortfolioHandler) GetSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.portfolioService.GetSummary(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetAssets handles listing holdings with current prices and recommendations.
// @Summary     Portfolio assets with prices
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string][]valuation.AssetView "Valued holdings"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /portfolio/assets [get]
func (h *PortfolioHandler) GetAssets(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	views, err := h.portfolioService.GetAssetsWithPrices(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assets": views})
}
