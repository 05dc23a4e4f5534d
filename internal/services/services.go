package services

import (
	"fmt"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/utils"

	"gorm.io/gorm"
)

type Options struct {
	CommentPageSize      int
	NotificationPageSize int
	PostPageSize         int
	CascadeMode          config.CascadeMode
	PostCacheSize        int
	PostCacheTTL         time.Duration
	ReconcileInterval    time.Duration
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		CommentPageSize:      cfg.CommentPageSize,
		NotificationPageSize: cfg.NotificationPageSize,
		PostPageSize:         20,
		CascadeMode:          cfg.CascadeMode,
		PostCacheSize:        cfg.PostCacheSize,
		PostCacheTTL:         cfg.PostCacheTTL,
		ReconcileInterval:    cfg.ReconcileBatchInterval,
	}
}

// Services 持有共享同一个数据库的全部服务
type Services struct {
	Posts          *PostService
	Comments       *CommentService
	Likes          *LikeService
	Notifications  *NotificationService
	Notifier       *Notifier
	Reconciler     *Reconciler
	ReconcileQueue *ReconcileQueue
}

func New(db *gorm.DB, opts Options) (*Services, error) {
	if opts.CommentPageSize <= 0 || opts.NotificationPageSize <= 0 || opts.PostPageSize <= 0 {
		return nil, fmt.Errorf("page sizes must be positive")
	}
	authors, err := utils.NewTTLCache[string](opts.PostCacheSize, opts.PostCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("create post author cache: %w", err)
	}

	reconciler := NewReconciler(db)
	queue := NewReconcileQueue(reconciler, opts.ReconcileInterval)

	notifier := NewNotifier()
	notifier.OnFailure(queue.Schedule)

	posts := NewPostService(db, authors, opts.PostPageSize)
	comments := NewCommentService(db, notifier, opts.CommentPageSize, opts.CascadeMode)
	comments.OnInconsistency(queue.Schedule)

	return &Services{
		Posts:          posts,
		Comments:       comments,
		Likes:          NewLikeService(db, posts, notifier),
		Notifications:  NewNotificationService(db, opts.NotificationPageSize),
		Notifier:       notifier,
		Reconciler:     reconciler,
		ReconcileQueue: queue,
	}, nil
}
