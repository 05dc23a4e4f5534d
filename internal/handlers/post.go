package handlers

import (
	"net/http"

	"inkwell/internal/api"
	"inkwell/internal/middleware"
	"inkwell/internal/services"
	"inkwell/internal/utils"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	posts *services.PostService
}

func NewPostHandler(posts *services.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

func (h *PostHandler) Create(c *gin.Context) {
	var req api.CreatePostRequest
	if !bindJSON(c, &req) {
		return
	}

	post, err := h.posts.Create(c.Request.Context(), services.CreatePostInput{
		AuthorID: middleware.CurrentUserID(c),
		Title:    req.Title,
		Tags:     req.Tags,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPost(*post))
}

func (h *PostHandler) Detail(c *gin.Context) {
	post, err := h.posts.Get(c.Request.Context(), c.Param("postId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPost(*post))
}

// List GET /api/posts?tag=&q=&page=
func (h *PostHandler) List(c *gin.Context) {
	posts, err := h.posts.List(c.Request.Context(), services.PostFilter{
		Tag:   c.Query("tag"),
		Query: c.Query("q"),
		Page:  utils.StringToInt(c.Query("page"), 1),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	out := api.PostList{Posts: make([]api.Post, 0, len(posts))}
	for _, p := range posts {
		out.Posts = append(out.Posts, toPost(p))
	}
	c.JSON(http.StatusOK, out)
}
