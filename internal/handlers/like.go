package handlers

import (
	"net/http"

	"inkwell/internal/api"
	"inkwell/internal/middleware"
	"inkwell/internal/services"

	"github.com/gin-gonic/gin"
)

type LikeHandler struct {
	likes *services.LikeService
}

func NewLikeHandler(likes *services.LikeService) *LikeHandler {
	return &LikeHandler{likes: likes}
}

// Toggle POST /api/posts/:postId/like  body {"liked": bool} 为期望状态
func (h *LikeHandler) Toggle(c *gin.Context) {
	var req api.LikeRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.likes.Toggle(c.Request.Context(), c.Param("postId"), middleware.CurrentUserID(c), *req.Liked)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.LikeResponse{Liked: res.Liked, TotalLikes: res.TotalLikes})
}

// Status GET /api/posts/:postId/like
func (h *LikeHandler) Status(c *gin.Context) {
	liked, err := h.likes.IsLiked(c.Request.Context(), c.Param("postId"), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": liked})
}
