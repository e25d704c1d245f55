package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "investtracker/internal/errors"
	"investtracker/internal/models"
	"investtracker/internal/pagination"
	"investtracker/internal/services"
)

const dateLayout = "2006-01-02"

// AssetHandler handles holding-related requests.
type AssetHandler struct {
	assetService services.AssetServicer
	auditService services.AuditServicer
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assetService services.AssetServicer, auditService services.AuditServicer) *AssetHandler {
	return &AssetHandler{assetService: assetService, auditService: auditService}
}

// CreateAssetRequest represents the request payload for creating a holding.
type CreateAssetRequest struct {
	AssetType        models.AssetType `json:"asset_type" binding:"required,asset_type"`
	Ticker           string           `json:"ticker" binding:"required,ticker"`
	Market           string           `json:"market" binding:"required,market"`
	Quantity         *decimal.Decimal `json:"quantity" binding:"required"`
	AvgPurchasePrice *decimal.Decimal `json:"avg_purchase_price" binding:"required"`
	PurchaseDate     string           `json:"purchase_date" binding:"required,datetime=2006-01-02"`
	Currency         string           `json:"currency" binding:"omitempty,iso4217"`
}

// UpdateAssetRequest represents the request payload for updating a holding.
// Omitted fields are left unchanged.
type UpdateAssetRequest struct {
	AssetType        *models.AssetType `json:"asset_type" binding:"omitempty,asset_type"`
	Ticker           *string           `json:"ticker" binding:"omitempty,ticker"`
	Market           *string           `json:"market" binding:"omitempty,market"`
	Quantity         *decimal.Decimal  `json:"quantity"`
	AvgPurchasePrice *decimal.Decimal  `json:"avg_purchase_price"`
	PurchaseDate     *string           `json:"purchase_date" binding:"omitempty,datetime=2006-01-02"`
	Currency         *string           `json:"currency" binding:"omitempty,iso4217"`
}

// CreateAsset handles creating a new holding.
// @Summary     Create asset
// @Description Add a holding to the authenticated owner's portfolio
// @Tags        assets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateAssetRequest true "Holding details"
// @Success     201 {object} models.Asset "Asset created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /assets [post]
func (h *AssetHandler) CreateAsset(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}
	purchased, _ := time.Parse(dateLayout, req.PurchaseDate)

	asset, err := h.assetService.CreateAsset(userID, services.AssetInput{
		AssetType:        req.AssetType,
		Ticker:           req.Ticker,
		Market:           req.Market,
		Quantity:         *req.Quantity,
		AvgPurchasePrice: *req.AvgPurchasePrice,
		PurchaseDate:     purchased,
		Currency:         req.Currency,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_ASSET", "asset", asset.ID, c.ClientIP(),
		map[string]any{"ticker": asset.Ticker, "market": asset.Market, "quantity": asset.Quantity.String()})

	c.JSON(http.StatusCreated, asset)
}

// GetUserAssets handles listing the owner's holdings.
// @Summary     List assets
// @Description Get a paginated list of the authenticated owner's holdings
// @Tags        assets
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Asset] "Paginated assets"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /assets [get]
func (h *AssetHandler) GetUserAssets(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	result, err := h.assetService.GetUserAssets(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAsset handles retrieving one holding.
// @Summary     Get asset by ID
// @Tags        assets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Asset ID"
// @Success     200 {object} models.Asset "Asset details"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Router      /assets/{id} [get]
func (h *AssetHandler) GetAsset(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	asset, err := h.assetService.GetAssetByID(userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, asset)
}

// UpdateAsset handles correcting a holding.
// @Summary     Update asset
// @Description Update a holding. Once an alert on it has fired, only quantity and average price may change.
// @Tags        assets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string             true "Asset ID"
// @Param       request body UpdateAssetRequest true "Fields to change"
// @Success     200 {object} models.Asset "Asset updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Failure     409 {object} ErrorResponse "Asset referenced by alert history"
// @Router      /assets/{id} [put]
func (h *AssetHandler) UpdateAsset(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	in := services.AssetUpdate{
		AssetType:        req.AssetType,
		Ticker:           req.Ticker,
		Market:           req.Market,
		Quantity:         req.Quantity,
		AvgPurchasePrice: req.AvgPurchasePrice,
		Currency:         req.Currency,
	}
	changes := map[string]any{}
	if req.PurchaseDate != nil {
		d, err := time.Parse(dateLayout, *req.PurchaseDate)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid purchase_date"))
			return
		}
		in.PurchaseDate = &d
		changes["purchase_date"] = *req.PurchaseDate
	}
	if req.Quantity != nil {
		changes["quantity"] = req.Quantity.String()
	}
	if req.AvgPurchasePrice != nil {
		changes["avg_purchase_price"] = req.AvgPurchasePrice.String()
	}
	if req.Ticker != nil {
		changes["ticker"] = *req.Ticker
	}
	if req.Market != nil {
		changes["market"] = *req.Market
	}

	asset, err := h.assetService.UpdateAsset(userID, c.Param("id"), in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_ASSET", "asset", asset.ID, c.ClientIP(), changes)

	c.JSON(http.StatusOK, asset)
}

// DeleteAsset handles removing a holding and its alert rules.
// @Summary     Delete asset
// @Description Delete a holding. Its alert rules are removed; fired-alert history is kept.
// @Tags        assets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Asset ID"
// @Success     200 {object} MessageResponse "Asset deleted"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Router      /assets/{id} [delete]
func (h *AssetHandler) DeleteAsset(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id := c.Param("id")
	if err := h.assetService.DeleteAsset(userID, id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_ASSET", "asset", id, c.ClientIP(), nil)

	c.JSON(http.StatusOK, MessageResponse{Message: "Asset deleted successfully"})
}
