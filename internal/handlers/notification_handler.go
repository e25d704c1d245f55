package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"investtracker/internal/pagination"
	"investtracker/internal/services"
)

// NotificationHandler handles in-app notification requests.
type NotificationHandler struct {
	notificationService services.NotificationServicer
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notificationService services.NotificationServicer) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// ListNotificationsQuery holds the query parameters for listing notifications.
type ListNotificationsQuery struct {
	pagination.PageRequest
	UnreadOnly bool `form:"unread_only"`
}

// UnreadCountResponse is the body of the unread-count endpoint.
type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

// GetNotifications handles listing the owner's notifications, newest first.
// @Summary     List notifications
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Param       unread_only query bool false "Only unread notifications"
// @Param       page        query int  false "Page number (default 1)"
// @Param       page_size   query int  false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Notification] "Paginated notifications"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /notifications [get]
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q ListNotificationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	result, err := h.notificationService.GetUserNotifications(userID, q.PageRequest, q.UnreadOnly)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetUnreadCount handles counting unread notifications.
// @Summary     Unread notification count
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} UnreadCountResponse "Unread count"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /notifications/unread-count [get]
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	count, err := h.notificationService.UnreadCount(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, UnreadCountResponse{Count: count})
}

// MarkRead handles marking one notification read. Marking it again is a no-op.
// @Summary     Mark notification read
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Notification ID"
// @Success     200 {object} MessageResponse "Marked read"
// @Failure     404 {object} ErrorResponse "Notification not found"
// @Router      /notifications/{id}/read [put]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.notificationService.MarkRead(userID, c.Param("id")); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Notification marked as read"})
}

// MarkAllRead handles marking every notification of the owner read.
// @Summary     Mark all notifications read
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]int64 "Number of notifications updated"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /notifications/read-all [put]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	updated, err := h.notificationService.MarkAllRead(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// DeleteNotification handles deleting a notification.
// @Summary     Delete notification
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Notification ID"
// @Success     200 {object} MessageResponse "Notification deleted"
// @Failure     404 {object} ErrorResponse "Notification not found"
// @Router      /notifications/{id} [delete]
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.notificationService.DeleteNotification(userID, c.Param("id")); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Notification deleted successfully"})
}

// CreateTestNotification handles sending the owner a test notification.
// @Summary     Send test notification
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Success     201 {object} models.Notification "Notification created"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /notifications/test [post]
func (h *NotificationHandler) CreateTestNotification(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	n, err := h.notificationService.CreateTestNotification(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, n)
}
