package services

import (
	"gorm.io/gorm"

	apperrors "investtracker/internal/errors"
	"investtracker/internal/models"
	"investtracker/internal/pagination"
)

// alertHistoryService reads fired-alert events. Events are written only by the engine.
type alertHistoryService struct {
	db *gorm.DB
}

// NewAlertHistoryService creates a new AlertHistoryServicer.
func NewAlertHistoryService(db *gorm.DB) AlertHistoryServicer {
	return &alertHistoryService{db: db}
}

// GetUserHistory returns the owner's events, newest first, optionally for one asset.
// Events outlive their rules and assets.
func (s *alertHistoryService) GetUserHistory(userID string, page pagination.PageRequest, assetID *string) (*pagination.PageResponse[models.AlertEvent], error) {
	base := s.db.Model(&models.AlertEvent{}).Where("user_id = ?", userID)
	if assetID != nil {
		base = base.Where("asset_id = ?", *assetID)
	}

	result, err := pagination.Find[models.AlertEvent](base, page, "sent_at DESC, id DESC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}
