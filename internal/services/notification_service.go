package services

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "investtracker/internal/errors"
	"investtracker/internal/models"
	"investtracker/internal/pagination"
)

// notificationService handles in-app notifications.
type notificationService struct {
	db *gorm.DB
}

// NewNotificationService creates a new NotificationServicer.
func NewNotificationService(db *gorm.DB) NotificationServicer {
	return &notificationService{db: db}
}

// Record creates the notification for event inside tx, the transaction that
// deactivated the rule and wrote the event.
func (s *notificationService) Record(tx *gorm.DB, event *models.AlertEvent, title string) (*models.Notification, error) {
	eventID := event.ID
	n := &models.Notification{
		UserID:       event.UserID,
		AlertEventID: &eventID,
		Title:        title,
		Message:      event.Message,
		CurrentPrice: decimal.NewNullDecimal(event.CurrentPrice),
	}
	if err := tx.Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}

// CreateTestNotification creates a notification not tied to any alert, so the
// owner can check delivery end to end.
func (s *notificationService) CreateTestNotification(userID string) (*models.Notification, error) {
	n := &models.Notification{
		UserID:  userID,
		Title:   "Test notification",
		Message: "Notifications are working. Alerts will appear here when they fire.",
	}
	if err := s.db.Create(n).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return n, nil
}

// GetUserNotifications returns the owner's notifications, newest first.
func (s *notificationService) GetUserNotifications(userID string, page pagination.PageRequest, unreadOnly bool) (*pagination.PageResponse[models.Notification], error) {
	base := s.db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		base = base.Where("is_read = ?", false)
	}

	result, err := pagination.Find[models.Notification](base, page, "created_at DESC, id DESC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// UnreadCount returns the number of unread, undeleted notifications for the owner.
func (s *notificationService) UnreadCount(userID string) (int64, error) {
	var count int64
	if err := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count, nil
}

// MarkRead marks one notification as read. Marking a read notification again is a no-op.
func (s *notificationService) MarkRead(userID, notificationID string) error {
	var n models.Notification
	if err := s.db.Where("id = ? AND user_id = ?", notificationID, userID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotificationNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if n.IsRead {
		return nil
	}
	if err := s.db.Model(&n).Update("is_read", true).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// MarkAllRead marks every unread notification of the owner as read and
// returns how many changed.
func (s *notificationService) MarkAllRead(userID string) (int64, error) {
	result := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteNotification soft-deletes a notification. The alert event it refers to is kept.
func (s *notificationService) DeleteNotification(userID, notificationID string) error {
	result := s.db.Where("id = ? AND user_id = ?", notificationID, userID).Delete(&models.Notification{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotificationNotFound
	}
	return nil
}
