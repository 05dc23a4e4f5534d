package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/logger"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/policy"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const deleteChunkSize = 500

// Delete 删除评论及其所有后代。权限只在子树根上检查一次。
// 默认整棵子树在一个事务里删除；stepwise 模式逐个节点提交，
// 中途失败时返回 *PartialFailure。
func (s *CommentService) Delete(ctx context.Context, commentID, requesterID string) (*DeleteResult, error) {
	start := time.Now()

	var (
		result *DeleteResult
		err    error
	)
	if s.cascadeMode == config.CascadeStepwise {
		result, err = s.deleteStepwise(ctx, commentID, requesterID)
	} else {
		result, err = s.deleteInTransaction(ctx, commentID, requesterID)
	}

	status := "ok"
	var partial *PartialFailure
	switch {
	case errors.As(err, &partial):
		status = "partial"
	case err != nil:
		status = "error"
	}
	observability.CascadeDuration.WithLabelValues(string(s.cascadeMode), status).Observe(time.Since(start).Seconds())

	if result != nil {
		observability.CommentsRemoved.Add(float64(len(result.RemovedIDs)))
	}
	if partial != nil {
		logger.Error("Cascade deletion stopped part way",
			zap.String("commentId", commentID),
			zap.Strings("removed", partial.RemovedIDs),
			zap.Strings("remaining", partial.RemainingIDs),
			zap.Error(partial.Err))
		if s.reconcile != nil && result != nil {
			s.reconcile(result.PostID)
		}
		return nil, err
	}
	return result, err
}

func (s *CommentService) deleteInTransaction(ctx context.Context, commentID, requesterID string) (*DeleteResult, error) {
	var (
		result    DeleteResult
		notifyErr error
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := findComment(tx, commentID)
		if err != nil {
			return err
		}
		if !policy.CanDelete(*target, requesterID, target.PostAuthorID) {
			return forbiddenError("only the comment author or the post author may delete this comment")
		}

		// 先锁父节点，再锁目标和后代
		parent, err := lockParent(tx, target)
		if err != nil {
			return err
		}
		target, err = lockComment(tx, commentID)
		if err != nil {
			return err
		}

		order, err := collectSubtree(tx, target.ID, true)
		if err != nil {
			return err
		}

		var removed int64
		for start := 0; start < len(order); start += deleteChunkSize {
			end := min(start+deleteChunkSize, len(order))
			res := tx.Where("id IN ?", order[start:end]).Delete(&models.Comment{})
			if res.Error != nil {
				return fmt.Errorf("delete comments: %w", res.Error)
			}
			removed += res.RowsAffected
		}
		if removed != int64(len(order)) {
			return fmt.Errorf("cascade removed %d of %d comments under %s", removed, len(order), commentID)
		}

		if parent != nil {
			childCount, err := unlinkChild(tx, parent, target.ID)
			if err != nil {
				return err
			}
			result.ParentID = &parent.ID
			result.ParentChildCount = childCount
		}

		if err := decrementCounters(tx, target.PostID, int64(len(order)), topLevelCount(target)); err != nil {
			return err
		}
		counters, err := loadCounters(tx, target.PostID)
		if err != nil {
			return err
		}

		result.PostID = target.PostID
		result.RemovedIDs = order
		result.Counters = counters

		notifyErr = s.notifier.OnCommentsDeleted(tx, target.PostID, order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Report(notifyErr)
	return &result, nil
}

// deleteStepwise 按后序逐个删除，每一步都保持 childIds 与计数一致
func (s *CommentService) deleteStepwise(ctx context.Context, commentID, requesterID string) (*DeleteResult, error) {
	tx := s.db.WithContext(ctx)
	target, err := findComment(tx, commentID)
	if err != nil {
		return nil, err
	}
	if !policy.CanDelete(*target, requesterID, target.PostAuthorID) {
		return nil, forbiddenError("only the comment author or the post author may delete this comment")
	}

	order, err := collectSubtree(tx, target.ID, false)
	if err != nil {
		return nil, err
	}

	result := &DeleteResult{PostID: target.PostID, RemovedIDs: make([]string, 0, len(order))}
	for i, id := range order {
		step, err := s.removeOne(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// 已被并发删除
			continue
		}
		if err != nil {
			return result, &PartialFailure{
				RemovedIDs:   result.RemovedIDs,
				RemainingIDs: append([]string(nil), order[i:]...),
				Err:          err,
			}
		}
		s.notifier.Report(step.notifyErr)
		result.RemovedIDs = append(result.RemovedIDs, id)
		result.Counters = step.counters
		if id == target.ID {
			result.ParentID = step.parentID
			result.ParentChildCount = step.parentChildCount
		}
	}

	if len(result.RemovedIDs) == 0 {
		return nil, notFoundError("comment", commentID)
	}
	return result, nil
}

type stepResult struct {
	parentID         *string
	parentChildCount int
	counters         models.Counters
	notifyErr        error
}

func (s *CommentService) removeOne(ctx context.Context, id string) (*stepResult, error) {
	var step stepResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		node, err := findComment(tx, id)
		if err != nil {
			return err
		}
		parent, err := lockParent(tx, node)
		if err != nil {
			return err
		}
		node, err = lockComment(tx, id)
		if err != nil {
			return err
		}

		var replies int64
		if err := tx.Model(&models.Comment{}).Where("parent_id = ?", id).Count(&replies).Error; err != nil {
			return fmt.Errorf("count replies of %s: %w", id, err)
		}
		if replies > 0 {
			return fmt.Errorf("comment %s gained %d replies during deletion", id, replies)
		}

		res := tx.Where("id = ?", id).Delete(&models.Comment{})
		if res.Error != nil {
			return fmt.Errorf("delete comment %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return notFoundError("comment", id)
		}

		if parent != nil {
			childCount, err := unlinkChild(tx, parent, id)
			if err != nil {
				return err
			}
			step.parentID = &parent.ID
			step.parentChildCount = childCount
		}

		if err := decrementCounters(tx, node.PostID, 1, topLevelCount(node)); err != nil {
			return err
		}
		step.counters, err = loadCounters(tx, node.PostID)
		if err != nil {
			return err
		}
		step.notifyErr = s.notifier.OnCommentsDeleted(tx, node.PostID, []string{id})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &step, nil
}

// collectSubtree 返回 rootID 及其全部后代的后序列表（子节点在前，根在最后）
func collectSubtree(tx *gorm.DB, rootID string, lock bool) ([]string, error) {
	children := make(map[string][]string)
	frontier := []string{rootID}
	for len(frontier) > 0 {
		var rows []models.Comment
		q := tx.Select("id", "parent_id").
			Where("parent_id IN ?", frontier).
			Order("created_at ASC, id ASC")
		if lock {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("collect replies: %w", err)
		}

		next := make([]string, 0, len(rows))
		for _, r := range rows {
			children[*r.ParentID] = append(children[*r.ParentID], r.ID)
			next = append(next, r.ID)
		}
		frontier = next
	}

	order := make([]string, 0, len(children)+1)
	var walk func(id string)
	walk = func(id string) {
		for _, child := range children[id] {
			walk(child)
		}
		order = append(order, id)
	}
	walk(rootID)
	return order, nil
}

func lockParent(tx *gorm.DB, c *models.Comment) (*models.Comment, error) {
	if c.ParentID == nil {
		return nil, nil
	}
	parent, err := lockComment(tx, *c.ParentID)
	if errors.Is(err, ErrNotFound) {
		logger.Warn("Comment has a dangling parent", zap.String("commentId", c.ID), zap.String("parentId", *c.ParentID))
		return nil, nil
	}
	return parent, err
}

func unlinkChild(tx *gorm.DB, parent *models.Comment, childID string) (int, error) {
	parent.ChildIDs = parent.ChildIDs.Without(childID)
	err := tx.Model(&models.Comment{}).Where("id = ?", parent.ID).
		UpdateColumn("child_ids", parent.ChildIDs).Error
	if err != nil {
		return 0, fmt.Errorf("unlink %s from parent %s: %w", childID, parent.ID, err)
	}
	return len(parent.ChildIDs), nil
}

// decrementCounters 原子扣减计数；会变成负数时整个事务失败
func decrementCounters(tx *gorm.DB, postID string, total, topLevel int64) error {
	res := tx.Model(&models.Post{}).
		Where("id = ? AND total_comments >= ? AND total_parent_comments >= ?", postID, total, topLevel).
		UpdateColumns(map[string]any{
			"total_comments":        gorm.Expr("total_comments - ?", total),
			"total_parent_comments": gorm.Expr("total_parent_comments - ?", topLevel),
		})
	if res.Error != nil {
		return fmt.Errorf("decrement counters: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("counters of post %s would go negative", postID)
	}
	return nil
}

func topLevelCount(c *models.Comment) int64 {
	if c.ParentID == nil {
		return 1
	}
	return 0
}
