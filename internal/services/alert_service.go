package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"investtracker/internal/alerting"
	apperrors "investtracker/internal/errors"
	"investtracker/internal/models"
	"investtracker/internal/pagination"
)

// maxUpdateAttempts bounds optimistic retries when the engine commits between
// our read and write of a rule.
const maxUpdateAttempts = 3

var hundredPct = decimal.NewFromInt(100)

// alertService handles alert-rule business logic.
type alertService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAlertService creates a new AlertServicer.
func NewAlertService(db *gorm.DB) AlertServicer {
	return &alertService{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// CreateAlert creates a rule on one of the owner's assets. New rules start in
// the unknown state and never fire on their first evaluation.
func (s *alertService) CreateAlert(userID string, in AlertInput) (*models.AlertRule, error) {
	if err := validateRule(in.AlertType, in.TargetValue, in.IsPercentage); err != nil {
		return nil, err
	}
	asset, err := findUserAsset(s.db, userID, in.AssetID)
	if err != nil {
		return nil, err
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	rule := &models.AlertRule{
		UserID:       userID,
		AssetID:      asset.ID,
		AlertType:    in.AlertType,
		TargetValue:  in.TargetValue,
		IsPercentage: in.IsPercentage,
		IsActive:     active,
		SideState:    models.SideUnknown,
		ActivatedAt:  s.now(),
		Version:      1,
	}
	if err := s.db.Create(rule).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	rule.Asset = asset
	return rule, nil
}

// GetUserAlerts returns a paginated list of the owner's rules, optionally filtered by active flag.
func (s *alertService) GetUserAlerts(userID string, page pagination.PageRequest, isActive *bool) (*pagination.PageResponse[models.AlertRule], error) {
	base := s.db.Model(&models.AlertRule{}).Where("user_id = ?", userID)
	if isActive != nil {
		base = base.Where("is_active = ?", *isActive)
	}

	result, err := pagination.Find[models.AlertRule](base, page, "created_at DESC, id DESC", preloadAsset)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetAssetAlerts returns every rule on one of the owner's assets.
func (s *alertService) GetAssetAlerts(userID, assetID string) ([]models.AlertRule, error) {
	if _, err := findUserAsset(s.db, userID, assetID); err != nil {
		return nil, err
	}
	var rules []models.AlertRule
	if err := s.db.Where("asset_id = ? AND user_id = ?", assetID, userID).
		Order("created_at DESC, id DESC").Find(&rules).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rules, nil
}

// GetAlertByID returns a rule owned by userID with its asset.
func (s *alertService) GetAlertByID(userID, alertID string) (*models.AlertRule, error) {
	return findUserAlert(s.db, userID, alertID)
}

// UpdateAlert applies in to a rule. Changing the type, target or percentage
// flag resets the rule to the unknown side; switching it back on counts as a
// reactivation.
func (s *alertService) UpdateAlert(userID, alertID string, in AlertUpdate) (*models.AlertRule, error) {
	return s.modify(userID, alertID, func(rule *models.AlertRule) (map[string]any, error) {
		alertType, target, pct := rule.AlertType, rule.TargetValue, rule.IsPercentage
		if in.AlertType != nil {
			alertType = *in.AlertType
		}
		if in.TargetValue != nil {
			target = *in.TargetValue
		}
		if in.IsPercentage != nil {
			pct = *in.IsPercentage
		}
		if err := validateRule(alertType, target, pct); err != nil {
			return nil, err
		}

		updates := map[string]any{}
		if alertType != rule.AlertType || !target.Equal(rule.TargetValue) || pct != rule.IsPercentage {
			updates["alert_type"] = alertType
			updates["target_value"] = target
			updates["is_percentage"] = pct
			updates["side_state"] = models.SideUnknown
		}
		if in.IsActive != nil && *in.IsActive != rule.IsActive {
			s.setActive(updates, *in.IsActive)
		}
		return updates, nil
	})
}

// ToggleAlert flips a rule's active flag.
func (s *alertService) ToggleAlert(userID, alertID string) (*models.AlertRule, error) {
	return s.modify(userID, alertID, func(rule *models.AlertRule) (map[string]any, error) {
		updates := map[string]any{}
		s.setActive(updates, !rule.IsActive)
		return updates, nil
	})
}

// DeleteAlert soft-deletes a rule. Its history is kept.
func (s *alertService) DeleteAlert(userID, alertID string) error {
	result := s.db.Where("id = ? AND user_id = ?", alertID, userID).Delete(&models.AlertRule{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrAlertNotFound
	}
	return nil
}

// setActive records an active-flag change. Reactivation starts a fresh
// activation: unknown side and a new activated_at.
func (s *alertService) setActive(updates map[string]any, active bool) {
	updates["is_active"] = active
	if active {
		updates["side_state"] = models.SideUnknown
		updates["activated_at"] = s.now()
	}
}

// modify reads a rule, computes updates from it and writes them only if the
// rule was not changed in between, retrying on conflict.
func (s *alertService) modify(userID, alertID string, change func(*models.AlertRule) (map[string]any, error)) (*models.AlertRule, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		rule, err := findUserAlert(s.db, userID, alertID)
		if err != nil {
			return nil, err
		}
		updates, err := change(rule)
		if err != nil {
			return nil, err
		}
		if len(updates) == 0 {
			return rule, nil
		}
		updates["version"] = gorm.Expr("version + 1")

		result := s.db.Model(&models.AlertRule{}).
			Where("id = ? AND user_id = ? AND version = ?", rule.ID, userID, rule.Version).
			Updates(updates)
		if result.Error != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
		}
		if result.RowsAffected == 1 {
			return findUserAlert(s.db, userID, alertID)
		}
	}
	return nil, apperrors.ErrAlertConflict
}

func preloadAsset(db *gorm.DB) *gorm.DB { return db.Preload("Asset") }

func findUserAlert(db *gorm.DB, userID, alertID string) (*models.AlertRule, error) {
	var rule models.AlertRule
	if err := db.Scopes(preloadAsset).Where("id = ? AND user_id = ?", alertID, userID).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAlertNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &rule, nil
}

// validateRule rejects rules that could never be evaluated: unknown types,
// non-positive targets, and percentage drops of 100% or more.
func validateRule(t models.AlertType, target decimal.Decimal, isPercentage bool) error {
	if !t.Valid() {
		return apperrors.ErrInvalidAlertType
	}
	if !target.IsPositive() {
		return apperrors.ErrInvalidTargetValue
	}
	if isPercentage && alerting.FiresBelow(t) && target.GreaterThanOrEqual(hundredPct) {
		return apperrors.WithMessage(apperrors.ErrInvalidTargetValue, "Percentage drop must be below 100")
	}
	return nil
}
