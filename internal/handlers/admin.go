package handlers

import (
	"net/http"

	"inkwell/internal/api"
	"inkwell/internal/services"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	reconciler *services.Reconciler
}

func NewAdminHandler(reconciler *services.Reconciler) *AdminHandler {
	return &AdminHandler{reconciler: reconciler}
}

// Reconcile 立即重算文章计数和回复链接
func (h *AdminHandler) Reconcile(c *gin.Context) {
	report, err := h.reconciler.Reconcile(c.Request.Context(), c.Param("postId"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.ReconcileReport{
		PostID:              report.PostID,
		Before:              toCounters(report.Before),
		After:               toCounters(report.After),
		RelinkedParents:     nonNil(report.RelinkedParents),
		RemovedOrphans:      nonNil(report.RemovedOrphans),
		PurgedNotifications: report.PurgedNotifications,
		ClearedReplyLinks:   report.ClearedReplyLinks,
		Changed:             report.Changed(),
	})
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
