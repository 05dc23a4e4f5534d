package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"inkwell/internal/logger"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReconcileReport struct {
	PostID              string
	Before              models.Counters
	After               models.Counters
	RelinkedParents     []string
	RemovedOrphans      []string
	PurgedNotifications int64
	ClearedReplyLinks   int64
}

// Changed reports whether the pass had to repair anything.
func (r *ReconcileReport) Changed() bool {
	return r.Before != r.After || len(r.RelinkedParents) > 0 || len(r.RemovedOrphans) > 0 ||
		r.PurgedNotifications > 0 || r.ClearedReplyLinks > 0
}

// Reconciler 按实际数据重新计算文章计数、childIds，并清理孤立通知
type Reconciler struct {
	db *gorm.DB
}

func NewReconciler(db *gorm.DB) *Reconciler {
	return &Reconciler{db: db}
}

func (r *Reconciler) Reconcile(ctx context.Context, postID string) (*ReconcileReport, error) {
	report := &ReconcileReport{PostID: postID}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findPost(tx, postID); err != nil {
			return err
		}

		// 与 Create/Delete 相同的加锁顺序：先评论（祖先在前），再文章行，避免死锁
		var locked []string
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Model(&models.Comment{}).
			Where("post_id = ?", postID).
			Order("created_at ASC, id ASC").
			Pluck("id", &locked).Error
		if err != nil {
			return fmt.Errorf("lock comments: %w", err)
		}

		// 锁住文章行之后再读评论，期间提交的计数增减都已可见
		post, err := findPost(tx.Clauses(clause.Locking{Strength: "UPDATE"}), postID)
		if err != nil {
			return err
		}
		report.Before = post.Counters()

		var comments []models.Comment
		err = tx.Select("id", "parent_id", "child_ids", "created_at").
			Where("post_id = ?", postID).
			Order("created_at ASC, id ASC").
			Find(&comments).Error
		if err != nil {
			return fmt.Errorf("load comments: %w", err)
		}

		orphans, kept := splitOrphans(comments)
		if len(orphans) > 0 {
			if err := tx.Where("id IN ?", orphans).Delete(&models.Comment{}).Error; err != nil {
				return fmt.Errorf("remove orphans: %w", err)
			}
			report.RemovedOrphans = orphans
		}

		for _, c := range relink(kept) {
			if err := tx.Model(&models.Comment{}).Where("id = ?", c.ID).
				UpdateColumn("child_ids", c.ChildIDs).Error; err != nil {
				return fmt.Errorf("relink %s: %w", c.ID, err)
			}
			report.RelinkedParents = append(report.RelinkedParents, c.ID)
		}

		var topLevel, likes int64
		for _, c := range kept {
			if c.ParentID == nil {
				topLevel++
			}
		}
		if err := tx.Model(&models.PostLike{}).Where("post_id = ?", postID).Count(&likes).Error; err != nil {
			return fmt.Errorf("count likes: %w", err)
		}
		report.After = models.Counters{
			TotalComments:       int64(len(kept)),
			TotalParentComments: topLevel,
			TotalLikes:          likes,
		}
		if report.After != report.Before {
			err := tx.Model(&models.Post{}).Where("id = ?", postID).UpdateColumns(map[string]any{
				"total_comments":        report.After.TotalComments,
				"total_parent_comments": report.After.TotalParentComments,
				"total_likes":           report.After.TotalLikes,
			}).Error
			if err != nil {
				return fmt.Errorf("store counters: %w", err)
			}
		}

		purged := tx.Where("post_id = ?", postID).
			Where("((comment_id IS NOT NULL AND NOT EXISTS (SELECT 1 FROM comments c WHERE c.id = notifications.comment_id))" +
				" OR (replied_on_comment_id IS NOT NULL AND NOT EXISTS (SELECT 1 FROM comments c WHERE c.id = notifications.replied_on_comment_id))" +
				" OR (type = 'like' AND NOT EXISTS (SELECT 1 FROM post_likes l WHERE l.post_id = notifications.post_id AND l.user_id = notifications.actor_id)))").
			Delete(&models.Notification{})
		if purged.Error != nil {
			return fmt.Errorf("purge notifications: %w", purged.Error)
		}
		report.PurgedNotifications = purged.RowsAffected

		cleared := tx.Model(&models.Notification{}).
			Where("post_id = ?", postID).
			Where("reply_id IS NOT NULL AND NOT EXISTS (SELECT 1 FROM comments c WHERE c.id = notifications.reply_id)").
			UpdateColumn("reply_id", nil)
		if cleared.Error != nil {
			return fmt.Errorf("clear reply links: %w", cleared.Error)
		}
		report.ClearedReplyLinks = cleared.RowsAffected
		return nil
	})
	if err != nil {
		observability.ReconcileRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	if report.Changed() {
		observability.ReconcileRuns.WithLabelValues("repaired").Inc()
		logger.Warn("Reconcile repaired post",
			zap.String("postId", postID),
			zap.Any("before", report.Before),
			zap.Any("after", report.After),
			zap.Strings("relinked", report.RelinkedParents),
			zap.Strings("orphans", report.RemovedOrphans),
			zap.Int64("purgedNotifications", report.PurgedNotifications))
	} else {
		observability.ReconcileRuns.WithLabelValues("clean").Inc()
	}
	return report, nil
}

// splitOrphans 找出父节点不存在的评论及其全部后代
func splitOrphans(comments []models.Comment) (orphans []string, kept []models.Comment) {
	exists := make(map[string]bool, len(comments))
	children := make(map[string][]string)
	for _, c := range comments {
		exists[c.ID] = true
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}

	dead := make(map[string]bool)
	var mark func(id string)
	mark = func(id string) {
		if dead[id] {
			return
		}
		dead[id] = true
		orphans = append(orphans, id)
		for _, child := range children[id] {
			mark(child)
		}
	}
	for _, c := range comments {
		if c.ParentID != nil && !exists[*c.ParentID] {
			mark(c.ID)
		}
	}

	for _, c := range comments {
		if !dead[c.ID] {
			kept = append(kept, c)
		}
	}
	return orphans, kept
}

// relink 返回 childIds 与实际子节点不一致的评论，ChildIDs 已修正。
// 仍然存在的子节点保留原顺序，缺失的按创建顺序追加。
func relink(comments []models.Comment) []models.Comment {
	actual := make(map[string][]string)
	for _, c := range comments {
		if c.ParentID != nil {
			actual[*c.ParentID] = append(actual[*c.ParentID], c.ID)
		}
	}

	var changed []models.Comment
	for _, c := range comments {
		want := actual[c.ID]
		isChild := make(map[string]bool, len(want))
		for _, id := range want {
			isChild[id] = true
		}

		fixed := make(models.StringList, 0, len(want))
		seen := make(map[string]bool, len(want))
		for _, id := range c.ChildIDs {
			if isChild[id] && !seen[id] {
				fixed = append(fixed, id)
				seen[id] = true
			}
		}
		for _, id := range want {
			if !seen[id] {
				fixed = append(fixed, id)
			}
		}

		if !equalIDs(fixed, c.ChildIDs) {
			c.ChildIDs = fixed
			changed = append(changed, c)
		}
	}
	return changed
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ReconcileQueue 异步执行 reconcile，同一篇文章在队列中只保留一次
type ReconcileQueue struct {
	reconciler *Reconciler
	queue      chan string
	pending    map[string]bool
	mu         sync.Mutex
	interval   time.Duration
	batchSize  int
}

func NewReconcileQueue(r *Reconciler, interval time.Duration) *ReconcileQueue {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &ReconcileQueue{
		reconciler: r,
		queue:      make(chan string, 1000),
		pending:    make(map[string]bool),
		interval:   interval,
		batchSize:  50,
	}
}

// Schedule 将文章加入队列（非阻塞），已在队列中则跳过
func (q *ReconcileQueue) Schedule(postID string) {
	q.mu.Lock()
	if q.pending[postID] {
		q.mu.Unlock()
		return
	}
	q.pending[postID] = true
	q.mu.Unlock()

	select {
	case q.queue <- postID:
	default:
		// 队列满了，移除 pending 标记
		q.mu.Lock()
		delete(q.pending, postID)
		q.mu.Unlock()
		observability.ReconcileQueueDropped.Inc()
		logger.Warn("Reconcile queue full, dropping post", zap.String("postId", postID))
	}
}

// Run 处理队列直到 ctx 结束：攒够一批或到达间隔时统一处理
func (q *ReconcileQueue) Run(ctx context.Context) {
	batch := make([]string, 0, q.batchSize)
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case postID := <-q.queue:
			batch = append(batch, postID)
			if len(batch) >= q.batchSize {
				q.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				q.processBatch(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (q *ReconcileQueue) processBatch(ctx context.Context, postIDs []string) {
	for _, postID := range postIDs {
		if _, err := q.reconciler.Reconcile(ctx, postID); err != nil {
			logger.Error("Scheduled reconcile failed", zap.String("postId", postID), zap.Error(err))
		}

		q.mu.Lock()
		delete(q.pending, postID)
		q.mu.Unlock()
	}
}
