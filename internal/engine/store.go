// Package engine runs evaluation cycles: fetch quotes, value holdings, decide
// each active alert rule and persist the outcome.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"investtracker/internal/models"
	"investtracker/internal/quotes"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrPersistenceConflict is returned when a rule changed between load and commit.
var ErrPersistenceConflict = errors.New("alert rule changed concurrently")

// ErrRuleGone is returned by ReloadRule when the rule was deleted.
var ErrRuleGone = errors.New("alert rule no longer exists")

// Firing carries what the engine writes when a rule fires.
type Firing struct {
	Price     decimal.Decimal
	Threshold decimal.Decimal
	Side      models.SideState
	Message   string
	Title     string
	FiredAt   time.Time
}

// Store is the persistence collaborator of the Runner.
type Store interface {
	// LoadActiveRules returns every active rule with its Asset loaded.
	LoadActiveRules(ctx context.Context) ([]models.AlertRule, error)

	// ReloadRule returns the current stored version of a rule with its Asset.
	ReloadRule(ctx context.Context, id string) (*models.AlertRule, error)

	// CommitRuleState writes side and active flag if rule.Version is still current.
	CommitRuleState(ctx context.Context, rule *models.AlertRule, side models.SideState, active bool) error

	// CommitRuleFiring atomically deactivates rule and writes its event and
	// notification, if rule.Version is still current and the rule is active.
	CommitRuleFiring(ctx context.Context, rule *models.AlertRule, f Firing) (*models.AlertEvent, error)

	// RecordPrices stores fetched quotes, ignoring duplicates. Returns the number stored.
	RecordPrices(ctx context.Context, qs []quotes.Quote) (int, error)
}

// NotificationRecorder creates the notification for an event inside the firing transaction.
type NotificationRecorder interface {
	Record(tx *gorm.DB, event *models.AlertEvent, title string) (*models.Notification, error)
}

// gormStore implements Store on GORM.
type gormStore struct {
	db       *gorm.DB
	notifier NotificationRecorder
}

// NewGormStore creates a Store backed by db.
func NewGormStore(db *gorm.DB, notifier NotificationRecorder) Store {
	return &gormStore{db: db, notifier: notifier}
}

func (s *gormStore) LoadActiveRules(ctx context.Context) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	err := s.db.WithContext(ctx).
		Preload("Asset").
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("load active rules: %w", err)
	}
	return rules, nil
}

func (s *gormStore) ReloadRule(ctx context.Context, id string) (*models.AlertRule, error) {
	var rule models.AlertRule
	err := s.db.WithContext(ctx).Preload("Asset").First(&rule, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleGone
		}
		return nil, fmt.Errorf("reload rule %s: %w", id, err)
	}
	return &rule, nil
}

func (s *gormStore) CommitRuleState(ctx context.Context, rule *models.AlertRule, side models.SideState, active bool) error {
	res := s.db.WithContext(ctx).
		Model(&models.AlertRule{}).
		Where("id = ? AND version = ?", rule.ID, rule.Version).
		Updates(map[string]any{
			"side_state": side,
			"is_active":  active,
			"version":    gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("commit rule state %s: %w", rule.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrPersistenceConflict
	}
	return nil
}

func (s *gormStore) CommitRuleFiring(ctx context.Context, rule *models.AlertRule, f Firing) (*models.AlertEvent, error) {
	var event *models.AlertEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		firedAt := f.FiredAt
		res := tx.Model(&models.AlertRule{}).
			Where("id = ? AND version = ? AND is_active = ?", rule.ID, rule.Version, true).
			Updates(map[string]any{
				"side_state":        f.Side,
				"is_active":         false,
				"last_triggered_at": &firedAt,
				"version":           gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPersistenceConflict
		}

		event = &models.AlertEvent{
			AlertID:      rule.ID,
			AssetID:      rule.AssetID,
			UserID:       rule.UserID,
			Ticker:       rule.Asset.Ticker,
			AlertType:    rule.AlertType,
			Message:      f.Message,
			CurrentPrice: f.Price,
			Threshold:    f.Threshold,
			SentAt:       firedAt,
		}
		if err := tx.Create(event).Error; err != nil {
			return err
		}

		_, err := s.notifier.Record(tx, event, f.Title)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrPersistenceConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("commit rule firing %s: %w", rule.ID, err)
	}
	return event, nil
}

func (s *gormStore) RecordPrices(ctx context.Context, qs []quotes.Quote) (int, error) {
	if len(qs) == 0 {
		return 0, nil
	}
	records := make([]models.PriceRecord, 0, len(qs))
	for _, q := range qs {
		records = append(records, models.PriceRecord{
			Ticker:     q.Key.Ticker,
			Market:     q.Key.Market,
			AssetType:  models.AssetType(q.Key.AssetType),
			Price:      q.Price,
			RecordedAt: q.ObservedAt,
		})
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&records)
	if res.Error != nil {
		return 0, fmt.Errorf("record prices: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}
