package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"organ-donation-server/internal/middleware"
	"organ-donation-server/internal/notifications"
	"organ-donation-server/internal/utils"
)

// NotificationHandler handles notification reads for the logged-in user.
type NotificationHandler struct {
	Dispatcher *notifications.Dispatcher
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(dispatcher *notifications.Dispatcher) *NotificationHandler {
	return &NotificationHandler{Dispatcher: dispatcher}
}

// GetMyNotifications handles fetching the current user's notifications.
func (h *NotificationHandler) GetMyNotifications(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	list, err := h.Dispatcher.ListForUser(userID)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch notifications: "+err.Error())
		return
	}
	utils.Success(c, "Notifications fetched successfully", list)
}

// MarkNotificationRead handles flagging one of the user's notifications as read.
func (h *NotificationHandler) MarkNotificationRead(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	if err := h.Dispatcher.MarkRead(c.Param("id"), userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Notification not found")
		} else {
			utils.InternalServerError(c, "Failed to update notification: "+err.Error())
		}
		return
	}
	utils.Success(c, "Notification marked as read", nil)
}
