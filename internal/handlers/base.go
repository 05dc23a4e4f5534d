package handlers

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"inkwell/internal/api"
	"inkwell/internal/logger"
	"inkwell/internal/models"
	"inkwell/internal/services"
	"inkwell/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding rules used by request bodies.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			logger.Error("Binding validator is not go-playground/validator, custom rules not registered")
			return
		}
		if err := registerRules(v); err != nil {
			logger.Error("Register binding validators failed", zap.Error(err))
		}
	})
}

func registerRules(v *validator.Validate) error {
	return v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// writeError 把业务错误映射为 HTTP 状态码和统一的错误结构
func writeError(c *gin.Context, err error) {
	var (
		partial *services.PartialFailure
		svcErr  *services.Error
		status  = http.StatusInternalServerError
		detail  = api.ErrorDetail{Code: api.CodeInternal, Message: "internal error"}
	)

	switch {
	case errors.As(err, &partial):
		detail = api.ErrorDetail{
			Code:    api.CodePartialFailure,
			Message: "comment removal stopped part way; remaining comments are still in place",
			Details: api.PartialFailureDetails{RemovedIDs: partial.RemovedIDs, RemainingIDs: partial.RemainingIDs},
		}
	case errors.Is(err, services.ErrValidation):
		status, detail.Code = http.StatusBadRequest, api.CodeValidation
	case errors.Is(err, services.ErrNotFound):
		status, detail.Code = http.StatusNotFound, api.CodeNotFound
	case errors.Is(err, services.ErrForbidden):
		status, detail.Code = http.StatusForbidden, api.CodeForbidden
	case errors.Is(err, services.ErrConflict):
		status, detail.Code = http.StatusConflict, api.CodeConflict
	}

	if errors.As(err, &svcErr) {
		detail.Message = svcErr.Message
		detail.Details = svcErr.Details
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, api.ErrorBody{Error: detail})
}

// bindJSON 绑定请求体，失败时直接返回 400
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var details []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details = append(details, fe.Field()+": "+fe.Tag())
			}
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorBody{Error: api.ErrorDetail{
			Code:    api.CodeValidation,
			Message: "invalid request body",
			Details: details,
		}})
		return false
	}
	return true
}

// queryOffset 读取非负整数查询参数
func queryOffset(c *gin.Context, key string) (int, bool) {
	n, ok := utils.ParseOffset(c.Query(key))
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorBody{Error: api.ErrorDetail{
			Code:    api.CodeValidation,
			Message: key + " must be a non-negative integer",
		}})
	}
	return n, ok
}

func toCounters(c models.Counters) api.Counters {
	return api.Counters{
		TotalComments:       c.TotalComments,
		TotalParentComments: c.TotalParentComments,
		TotalLikes:          c.TotalLikes,
	}
}

func toComment(c models.Comment) api.Comment {
	children := []string(c.ChildIDs)
	if children == nil {
		children = []string{}
	}
	return api.Comment{
		ID:           c.ID,
		PostID:       c.PostID,
		PostAuthorID: c.PostAuthorID,
		AuthorID:     c.AuthorID,
		Body:         c.Body,
		BodyHTML:     utils.RenderMarkdown(c.Body),
		ParentID:     c.ParentID,
		IsReply:      c.IsReply,
		ChildIDs:     children,
		ChildCount:   len(children),
		CreatedAt:    c.CreatedAt,
	}
}

func toComments(in []models.Comment) []api.Comment {
	out := make([]api.Comment, 0, len(in))
	for _, c := range in {
		out = append(out, toComment(c))
	}
	return out
}

func toPost(p models.Post) api.Post {
	tags := []string(p.Tags)
	if tags == nil {
		tags = []string{}
	}
	return api.Post{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Title:     p.Title,
		Tags:      tags,
		Counters:  toCounters(p.Counters()),
		CreatedAt: p.CreatedAt,
	}
}

func toNotification(n models.Notification) api.Notification {
	return api.Notification{
		ID:                 n.ID,
		Type:               string(n.Type),
		PostID:             n.PostID,
		ActorID:            n.ActorID,
		CommentID:          n.CommentID,
		RepliedOnCommentID: n.RepliedOnCommentID,
		ReplyID:            n.ReplyID,
		Seen:               n.Seen,
		CreatedAt:          n.CreatedAt,
	}
}
