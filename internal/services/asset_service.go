package services

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "investtracker/internal/errors"
	"investtracker/internal/models"
	"investtracker/internal/pagination"
)

// assetService handles asset-related business logic.
type assetService struct {
	db              *gorm.DB
	defaultCurrency string
}

// NewAssetService creates a new AssetServicer. Assets created without a
// currency get defaultCurrency.
func NewAssetService(db *gorm.DB, defaultCurrency string) AssetServicer {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &assetService{db: db, defaultCurrency: strings.ToUpper(defaultCurrency)}
}

// CreateAsset validates and stores a new holding.
func (s *assetService) CreateAsset(userID string, in AssetInput) (*models.Asset, error) {
	ticker := strings.ToUpper(strings.TrimSpace(in.Ticker))
	market := strings.ToUpper(strings.TrimSpace(in.Market))
	if ticker == "" || market == "" {
		return nil, apperrors.ErrInvalidTicker
	}
	if !in.AssetType.Valid() {
		return nil, apperrors.ErrInvalidAssetType
	}
	if err := validateHolding(in.Quantity, in.AvgPurchasePrice); err != nil {
		return nil, err
	}
	if in.PurchaseDate.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Purchase date is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}

	asset := &models.Asset{
		UserID:           userID,
		AssetType:        in.AssetType,
		Ticker:           ticker,
		Market:           market,
		Quantity:         in.Quantity,
		AvgPurchasePrice: in.AvgPurchasePrice,
		PurchaseDate:     in.PurchaseDate.UTC(),
		Currency:         currency,
	}
	if err := s.db.Create(asset).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return asset, nil
}

// GetUserAssets returns a paginated list of the owner's assets, newest first.
func (s *assetService) GetUserAssets(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Asset], error) {
	base := s.db.Model(&models.Asset{}).Where("user_id = ?", userID)
	result, err := pagination.Find[models.Asset](base, page, "created_at DESC, id DESC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetAssetByID returns an asset owned by userID.
func (s *assetService) GetAssetByID(userID, assetID string) (*models.Asset, error) {
	return findUserAsset(s.db, userID, assetID)
}

// UpdateAsset applies in to an asset. Once an asset is referenced by alert
// history only its quantity and average price may change. Changes that move
// a rule's threshold or quote reset that rule to the unknown side.
func (s *assetService) UpdateAsset(userID, assetID string, in AssetUpdate) (*models.Asset, error) {
	var asset *models.Asset
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		asset, err = findUserAsset(tx, userID, assetID)
		if err != nil {
			return err
		}

		updates := map[string]any{}
		// restricted: a field other than quantity or average price changed.
		// keyChanged: the quote key changed.
		restricted, keyChanged := false, false

		if in.AssetType != nil && *in.AssetType != asset.AssetType {
			if !in.AssetType.Valid() {
				return apperrors.ErrInvalidAssetType
			}
			updates["asset_type"] = *in.AssetType
			restricted, keyChanged = true, true
		}
		if in.Ticker != nil {
			ticker := strings.ToUpper(strings.TrimSpace(*in.Ticker))
			if ticker == "" {
				return apperrors.ErrInvalidTicker
			}
			if ticker != asset.Ticker {
				updates["ticker"] = ticker
				restricted, keyChanged = true, true
			}
		}
		if in.Market != nil {
			market := strings.ToUpper(strings.TrimSpace(*in.Market))
			if market == "" {
				return apperrors.ErrInvalidTicker
			}
			if market != asset.Market {
				updates["market"] = market
				restricted, keyChanged = true, true
			}
		}
		if in.PurchaseDate != nil && !in.PurchaseDate.Equal(asset.PurchaseDate) {
			updates["purchase_date"] = in.PurchaseDate.UTC()
			restricted = true
		}
		if in.Currency != nil {
			currency := strings.ToUpper(strings.TrimSpace(*in.Currency))
			if currency != "" && currency != asset.Currency {
				updates["currency"] = currency
				restricted = true
			}
		}

		quantity, avg := asset.Quantity, asset.AvgPurchasePrice
		if in.Quantity != nil {
			quantity = *in.Quantity
		}
		if in.AvgPurchasePrice != nil {
			avg = *in.AvgPurchasePrice
		}
		if err := validateHolding(quantity, avg); err != nil {
			return err
		}
		if !quantity.Equal(asset.Quantity) {
			updates["quantity"] = quantity
		}
		avgChanged := !avg.Equal(asset.AvgPurchasePrice)
		if avgChanged {
			updates["avg_purchase_price"] = avg
		}

		if len(updates) == 0 {
			return nil
		}

		if restricted {
			var events int64
			if err := tx.Model(&models.AlertEvent{}).Where("asset_id = ?", asset.ID).Count(&events).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if events > 0 {
				return apperrors.ErrAssetImmutable
			}
		}

		if err := tx.Model(asset).Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		// A new quote key moves every rule; a new average price moves percentage rules.
		rules := tx.Model(&models.AlertRule{}).Where("asset_id = ?", asset.ID)
		switch {
		case keyChanged:
		case avgChanged:
			rules = rules.Where("is_percentage = ?", true)
		default:
			return nil
		}
		if err := rules.Updates(map[string]any{
			"side_state": models.SideUnknown,
			"version":    gorm.Expr("version + 1"),
		}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return findUserAsset(s.db, userID, assetID)
}

// DeleteAsset soft-deletes an asset and its alert rules. Alert history is kept.
func (s *assetService) DeleteAsset(userID, assetID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		asset, err := findUserAsset(tx, userID, assetID)
		if err != nil {
			return err
		}
		if err := tx.Where("asset_id = ?", asset.ID).Delete(&models.AlertRule{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(asset).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

func findUserAsset(db *gorm.DB, userID, assetID string) (*models.Asset, error) {
	var asset models.Asset
	if err := db.Where("id = ? AND user_id = ?", assetID, userID).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAssetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &asset, nil
}

func validateHolding(quantity, avgPrice decimal.Decimal) error {
	if !quantity.IsPositive() || !avgPrice.IsPositive() {
		return apperrors.ErrInvalidHolding
	}
	return nil
}
