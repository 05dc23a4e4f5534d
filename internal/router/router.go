package router

import (
	"net/http"

	"inkwell/internal/config"
	"inkwell/internal/handlers"
	"inkwell/internal/middleware"
	"inkwell/internal/observability"
	"inkwell/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

type Deps struct {
	Config   config.Config
	Services *services.Services
}

// New builds the engine with sessions, logging and every API route.
func New(deps Deps) *gin.Engine {
	handlers.RegisterValidators()

	r := gin.New()
	r.Use(middleware.Recovery(), middleware.RequestLogger())

	store := cookie.NewStore([]byte(deps.Config.SessionSecret))
	r.Use(sessions.Sessions("inkwell_session", store))
	r.Use(middleware.LoadUser(deps.Config.TrustUserHeader))

	RegisterRoutes(r, deps)
	return r
}

func RegisterRoutes(r *gin.Engine, deps Deps) {
	svc := deps.Services

	// Handlers
	postHandler := handlers.NewPostHandler(svc.Posts)
	commentHandler := handlers.NewCommentHandler(svc.Comments)
	likeHandler := handlers.NewLikeHandler(svc.Likes)
	notificationHandler := handlers.NewNotificationHandler(svc.Notifications)
	adminHandler := handlers.NewAdminHandler(svc.Reconciler)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", observability.Handler())

	// 公共路由 (Public Routes)
	public := r.Group("/api")
	{
		public.GET("/posts", postHandler.List)                                 // 文章列表（标签/标题过滤）
		public.GET("/posts/:postId", postHandler.Detail)                       // 文章详情与计数
		public.GET("/posts/:postId/comments", commentHandler.ListTopLevel)     // 顶级评论分页
		public.GET("/comments/:commentId/replies", commentHandler.ListReplies) // 展开回复分页
	}

	// 受保护路由 (Protected Routes)
	authorized := r.Group("/api")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/posts", postHandler.Create)                     // 发布文章
		authorized.POST("/posts/:postId/comments", commentHandler.Create) // 发表评论或回复
		authorized.DELETE("/comments/:commentId", commentHandler.Delete)  // 删除评论及其所有回复
		authorized.POST("/posts/:postId/like", likeHandler.Toggle)        // 点赞/取消点赞
		authorized.GET("/posts/:postId/like", likeHandler.Status)         // 当前用户是否已点赞

		authorized.GET("/notifications", notificationHandler.List)              // 通知列表
		authorized.GET("/notifications/count", notificationHandler.Count)       // 通知总数
		authorized.GET("/notifications/new", notificationHandler.New)           // 是否有未读通知
		authorized.POST("/notifications/:id/read", notificationHandler.Read)    // 标记单条通知为已读
		authorized.POST("/notifications/read-all", notificationHandler.ReadAll) // 全部通知标记为已读
		authorized.DELETE("/notifications/:id", notificationHandler.Delete)     // 删除单条通知
	}

	// 管理路由 (Admin Routes)
	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthRequired(), middleware.AdminOnly(deps.Config.AdminUserIDs))
	{
		admin.POST("/posts/:postId/reconcile", adminHandler.Reconcile) // 重算计数和回复链接
	}
}
