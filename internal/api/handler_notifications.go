package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cmms-backend/internal/model"
	"cmms-backend/internal/mw"
)

// GetNotifications lists change notifications. Privileged only.
func (h *Handler) GetNotifications(c *gin.Context) {
	if !mw.CurrentUser(c).Privileged() {
		forbidden(c)
		return
	}
	ctx := c.Request.Context()
	list, err := h.Notifications.List(ctx, c.Query("unread") == "true")
	if err != nil {
		abortWithError(c, err)
		return
	}
	unread, err := h.Notifications.UnreadCount(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if list == nil {
		list = []model.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"unread": unread, "notifications": list})
}

// PostNotificationRead marks a notification as read. Privileged only.
func (h *Handler) PostNotificationRead(c *gin.Context) {
	if !mw.CurrentUser(c).Privileged() {
		forbidden(c)
		return
	}
	if err := h.Notifications.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
