package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"investtracker/internal/pagination"
	"investtracker/internal/services"
)

// HistoryHandler serves fired-alert history.
type HistoryHandler struct {
	historyService services.AlertHistoryServicer
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(historyService services.AlertHistoryServicer) *HistoryHandler {
	return &HistoryHandler{historyService: historyService}
}

// HistoryQuery holds the query parameters for the history listing.
type HistoryQuery struct {
	pagination.PageRequest
	AssetID string `form:"asset_id" binding:"omitempty,uuid"`
}

// GetHistory handles listing fired alerts, newest first.
// @Summary     Alert history
// @Tags        alerts
// @Produce     json
// @Security    BearerAuth
// @Param       asset_id  query string false "Only events of this asset"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.AlertEvent] "Paginated history"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /alerts/history [get]
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	var assetID *string
	if q.AssetID != "" {
		assetID = &q.AssetID
	}

	result, err := h.historyService.GetUserHistory(userID, q.PageRequest, assetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
