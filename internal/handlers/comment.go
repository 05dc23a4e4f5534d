package handlers

import (
	"net/http"

	"inkwell/internal/api"
	"inkwell/internal/middleware"
	"inkwell/internal/services"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	comments *services.CommentService
}

func NewCommentHandler(comments *services.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// ListTopLevel GET /api/posts/:postId/comments?skip=
func (h *CommentHandler) ListTopLevel(c *gin.Context) {
	skip, ok := queryOffset(c, "skip")
	if !ok {
		return
	}

	page, err := h.comments.ListTopLevel(c.Request.Context(), c.Param("postId"), skip)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.TopLevelPage{
		Comments: toComments(page.Comments),
		HasMore:  page.HasMore,
		Counters: toCounters(page.Counters),
	})
}

// ListReplies GET /api/comments/:commentId/replies?skip=
func (h *CommentHandler) ListReplies(c *gin.Context) {
	skip, ok := queryOffset(c, "skip")
	if !ok {
		return
	}

	page, err := h.comments.ListChildren(c.Request.Context(), c.Param("commentId"), skip)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.ChildrenPage{
		Children:      toComments(page.Children),
		HasMore:       page.HasMore,
		TotalChildren: page.TotalChildren,
	})
}

// Create POST /api/posts/:postId/comments
func (h *CommentHandler) Create(c *gin.Context) {
	var req api.CreateCommentRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.comments.Create(c.Request.Context(), services.CreateCommentInput{
		PostID:         c.Param("postId"),
		AuthorID:       middleware.CurrentUserID(c),
		Body:           req.Body,
		ParentID:       req.ParentID,
		NotificationID: req.NotificationID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	out := api.CreateCommentResponse{
		Comment:  toComment(res.Comment),
		Counters: toCounters(res.Counters),
	}
	if res.Parent != nil {
		n := len(res.Parent.ChildIDs)
		out.ParentChildCount = &n
	}
	c.JSON(http.StatusCreated, out)
}

// Delete DELETE /api/comments/:commentId
func (h *CommentHandler) Delete(c *gin.Context) {
	res, err := h.comments.Delete(c.Request.Context(), c.Param("commentId"), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.DeleteCommentResponse{
		RemovedIDs:       res.RemovedIDs,
		ParentID:         res.ParentID,
		ParentChildCount: res.ParentChildCount,
		Counters:         toCounters(res.Counters),
	})
}
