package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"investtracker/internal/models"
	"investtracker/internal/pagination"
	"investtracker/internal/services"
)

// AlertHandler handles alert-rule requests.
type AlertHandler struct {
	alertService services.AlertServicer
	auditService services.AuditServicer
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(alertService services.AlertServicer, auditService services.AuditServicer) *AlertHandler {
	return &AlertHandler{alertService: alertService, auditService: auditService}
}

// CreateAlertRequest represents the request payload for creating an alert rule.
type CreateAlertRequest struct {
	AssetID      string           `json:"asset_id" binding:"required,uuid"`
	AlertType    models.AlertType `json:"alert_type" binding:"required,alert_type"`
	TargetValue  *decimal.Decimal `json:"target_value" binding:"required"`
	IsPercentage bool             `json:"is_percentage"`
	IsActive     *bool            `json:"is_active"`
}

// UpdateAlertRequest represents the request payload for updating an alert rule.
type UpdateAlertRequest struct {
	AlertType    *models.AlertType `json:"alert_type" binding:"omitempty,alert_type"`
	TargetValue  *decimal.Decimal  `json:"target_value"`
	IsPercentage *bool             `json:"is_percentage"`
	IsActive     *bool             `json:"is_active"`
}

// ListAlertsQuery holds the query parameters for listing alert rules.
type ListAlertsQuery struct {
	pagination.PageRequest
	IsActive *bool `form:"is_active"`
}

// CreateAlert handles creating an alert rule on one of the owner's assets.
// @Summary     Create alert rule
// @Description Create a price alert. Percentage targets are relative to the asset's average purchase price.
// @Tags        alerts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateAlertRequest true "Alert rule"
// @Success     201 {object} models.AlertRule "Alert created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Router      /alerts [post]
func (h *AlertHandler) CreateAlert(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	rule, err := h.alertService.CreateAlert(userID, services.AlertInput{
		AssetID:      req.AssetID,
		AlertType:    req.AlertType,
		TargetValue:  *req.TargetValue,
		IsPercentage: req.IsPercentage,
		IsActive:     req.IsActive,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_ALERT", "alert", rule.ID, c.ClientIP(), map[string]any{
		"asset_id":      rule.AssetID,
		"alert_type":    string(rule.AlertType),
		"target_value":  rule.TargetValue.String(),
		"is_percentage": rule.IsPercentage,
	})

	c.JSON(http.StatusCreated, rule)
}

// GetUserAlerts handles listing the owner's alert rules.
// @Summary     List alert rules
// @Tags        alerts
// @Produce     json
// @Security    BearerAuth
// @Param       is_active query bool false "Filter by active flag"
// @Param       page      query int  false "Page number (default 1)"
// @Param       page_size query int  false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.AlertRule] "Paginated alert rules"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /alerts [get]
func (h *AlertHandler) GetUserAlerts(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q ListAlertsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	result, err := h.alertService.GetUserAlerts(userID, q.PageRequest, q.IsActive)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAssetAlerts handles listing the alert rules on one asset.
// @Summary     List alert rules of an asset
// @Tags        alerts
// @Produce     json
// @Security    BearerAuth
// @Param       asset_id path string true "Asset ID"
// @Success     200 {object} map[string][]models.AlertRule "Alert rules"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Router      /alerts/asset/{asset_id} [get]
func (h *AlertHandler) GetAssetAlerts(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rules, err := h.alertService.GetAssetAlerts(userID, c.Param("asset_id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": rules})
}

// GetAlert handles retrieving one alert rule.
// @Summary     Get alert rule by ID
// @Tags        alerts
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Alert ID"
// @Success     200 {object} models.AlertRule "Alert rule"
// @Failure     404 {object} ErrorResponse "Alert not found"
// @Router      /alerts/{id} [get]
func (h *AlertHandler) GetAlert(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rule, err := h.alertService.GetAlertByID(userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

// UpdateAlert handles changing an alert rule. A new threshold or
// reactivation re-arms the rule from the next observed price.
// @Summary     Update alert rule
// @Tags        alerts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string             true "Alert ID"
// @Param       request body UpdateAlertRequest true "Fields to change"
// @Success     200 {object} models.AlertRule "Alert updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Alert not found"
// @Failure     409 {object} ErrorResponse "Concurrent modification"
// @Router      /alerts/{id} [put]
func (h *AlertHandler) UpdateAlert(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	rule, err := h.alertService.UpdateAlert(userID, c.Param("id"), services.AlertUpdate{
		AlertType:    req.AlertType,
		TargetValue:  req.TargetValue,
		IsPercentage: req.IsPercentage,
		IsActive:     req.IsActive,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_ALERT", "alert", rule.ID, c.ClientIP(), map[string]any{
		"alert_type":    string(rule.AlertType),
		"target_value":  rule.TargetValue.String(),
		"is_percentage": rule.IsPercentage,
		"is_active":     rule.IsActive,
	})

	c.JSON(http.StatusOK, rule)
}

// ToggleAlert handles flipping an alert rule's active flag.
// @Summary     Toggle alert rule
// @Tags        alerts
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Alert ID"
// @Success     200 {object} models.AlertRule "Alert toggled"
// @Failure     404 {object} ErrorResponse "Alert not found"
// @Failure     409 {object} ErrorResponse "Concurrent modification"
// @Router      /alerts/{id}/toggle [patch]
func (h *AlertHandler) ToggleAlert(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rule, err := h.alertService.ToggleAlert(userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "TOGGLE_ALERT", "alert", rule.ID, c.ClientIP(),
		map[string]any{"is_active": rule.IsActive})

	c.JSON(http.StatusOK, rule)
}

// DeleteAlert handles deleting an alert rule.
// @Summary     Delete alert rule
// @Tags        alerts
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Alert ID"
// @Success     200 {object} MessageResponse "Alert deleted"
// @Failure     404 {object} ErrorResponse "Alert not found"
// @Router      /alerts/{id} [delete]
func (h *AlertHandler) DeleteAlert(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id := c.Param("id")
	if err := h.alertService.DeleteAlert(userID, id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_ALERT", "alert", id, c.ClientIP(), nil)

	c.JSON(http.StatusOK, MessageResponse{Message: "Alert deleted successfully"})
}
