package handlers

import (
	"net/http"

	"inkwell/internal/api"
	"inkwell/internal/middleware"
	"inkwell/internal/services"
	"inkwell/internal/utils"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List GET /api/notifications?filter=&page=&deletedDocCount=
func (h *NotificationHandler) List(c *gin.Context) {
	filter, err := services.ParseNotificationFilter(c.Query("filter"))
	if err != nil {
		writeError(c, err)
		return
	}
	deleted, ok := queryOffset(c, "deletedDocCount")
	if !ok {
		return
	}

	page, err := h.notifications.List(c.Request.Context(), middleware.CurrentUserID(c), filter,
		utils.StringToInt(c.Query("page"), 1), deleted)
	if err != nil {
		writeError(c, err)
		return
	}

	out := api.NotificationPage{
		Notifications: make([]api.Notification, 0, len(page.Notifications)),
		HasMore:       page.HasMore,
	}
	for _, n := range page.Notifications {
		out.Notifications = append(out.Notifications, toNotification(n))
	}
	c.JSON(http.StatusOK, out)
}

func (h *NotificationHandler) Count(c *gin.Context) {
	filter, err := services.ParseNotificationFilter(c.Query("filter"))
	if err != nil {
		writeError(c, err)
		return
	}
	count, err := h.notifications.Count(c.Request.Context(), middleware.CurrentUserID(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.CountResponse{Count: count})
}

// New reports whether unseen notifications exist
func (h *NotificationHandler) New(c *gin.Context) {
	available, err := h.notifications.HasNew(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.NewNotificationsResponse{Available: available})
}

func (h *NotificationHandler) Read(c *gin.Context) {
	if err := h.notifications.MarkRead(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) ReadAll(c *gin.Context) {
	n, err := h.notifications.ReadAll(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.CountResponse{Count: n})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	if err := h.notifications.Delete(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
