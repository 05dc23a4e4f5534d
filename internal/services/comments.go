package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/policy"
	"inkwell/internal/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreateCommentInput struct {
	PostID   string
	AuthorID string
	Body     string
	ParentID *string
	// 在通知中直接回复时带上通知 ID
	NotificationID *string
}

type CreateCommentResult struct {
	Comment  models.Comment
	Parent   *models.Comment
	Counters models.Counters
}

type TopLevelPage struct {
	Comments []models.Comment
	HasMore  bool
	Counters models.Counters
}

type ChildrenPage struct {
	Children      []models.Comment
	HasMore       bool
	TotalChildren int
}

type DeleteResult struct {
	PostID string
	// 后序排列，子树根在最后
	RemovedIDs       []string
	ParentID         *string
	ParentChildCount int
	Counters         models.Counters
}

// CommentService 评论树的存储：创建、分页读取、级联删除。
// childIds 和文章计数只在这里（以及 Reconciler）修改。
type CommentService struct {
	db          *gorm.DB
	notifier    *Notifier
	reconcile   func(postID string)
	pageSize    int
	cascadeMode config.CascadeMode
}

func NewCommentService(db *gorm.DB, notifier *Notifier, pageSize int, mode config.CascadeMode) *CommentService {
	return &CommentService{
		db:          db,
		notifier:    notifier,
		pageSize:    pageSize,
		cascadeMode: mode,
	}
}

// OnInconsistency registers fn to repair a post after a partial cascade.
func (s *CommentService) OnInconsistency(fn func(postID string)) {
	s.reconcile = fn
}

// Create 发表评论或回复。插入、父节点 childIds 追加、计数增加和通知在同一事务中完成，
// 父评论行先加锁。
func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (*CreateCommentResult, error) {
	if !policy.CanComment(in.AuthorID) {
		return nil, validationError("author is required")
	}
	body := strings.TrimSpace(in.Body)
	if utils.CleanText(body) == "" {
		return nil, validationError("comment body must not be empty")
	}
	if in.ParentID != nil && *in.ParentID == "" {
		in.ParentID = nil
	}

	var (
		result     CreateCommentResult
		notifyErrs []error
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := findPost(tx, in.PostID)
		if err != nil {
			return err
		}

		var parent *models.Comment
		if in.ParentID != nil {
			parent, err = lockComment(tx, *in.ParentID)
			if err != nil {
				return err
			}
			if parent.PostID != post.ID {
				return notFoundError("comment", *in.ParentID)
			}
		}

		comment := models.Comment{
			ID:           newID(),
			PostID:       post.ID,
			PostAuthorID: post.AuthorID,
			AuthorID:     in.AuthorID,
			Body:         body,
			ParentID:     in.ParentID,
			IsReply:      in.ParentID != nil,
			ChildIDs:     models.StringList{},
		}
		if err := tx.Create(&comment).Error; err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}

		topLevel := int64(1)
		if parent != nil {
			topLevel = 0
			parent.ChildIDs = append(parent.ChildIDs, comment.ID)
			if err := tx.Model(&models.Comment{}).Where("id = ?", parent.ID).
				UpdateColumn("child_ids", parent.ChildIDs).Error; err != nil {
				return fmt.Errorf("link reply to parent %s: %w", parent.ID, err)
			}
		}

		err = tx.Model(&models.Post{}).Where("id = ?", post.ID).UpdateColumns(map[string]any{
			"total_comments":        gorm.Expr("total_comments + ?", 1),
			"total_parent_comments": gorm.Expr("total_parent_comments + ?", topLevel),
		}).Error
		if err != nil {
			return fmt.Errorf("increment counters: %w", err)
		}

		counters, err := loadCounters(tx, post.ID)
		if err != nil {
			return err
		}

		result = CreateCommentResult{Comment: comment, Parent: parent, Counters: counters}

		// 通知随评论一起提交，删除评论时一定能看到并清理它们
		if parent != nil {
			notifyErrs = append(notifyErrs, s.notifier.OnReplyCreated(tx, comment, *parent))
			if in.NotificationID != nil && *in.NotificationID != "" {
				notifyErrs = append(notifyErrs, s.notifier.LinkReply(tx, *in.NotificationID, in.AuthorID, comment))
			}
		} else {
			notifyErrs = append(notifyErrs, s.notifier.OnCommentCreated(tx, comment, post.AuthorID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Parent != nil {
		observability.CommentsCreated.WithLabelValues("reply").Inc()
	} else {
		observability.CommentsCreated.WithLabelValues("comment").Inc()
	}
	for _, err := range notifyErrs {
		s.notifier.Report(err)
	}
	return &result, nil
}

func (s *CommentService) Get(ctx context.Context, id string) (*models.Comment, error) {
	return findComment(s.db.WithContext(ctx), id)
}

// ListTopLevel 按时间倒序返回一页顶级评论
func (s *CommentService) ListTopLevel(ctx context.Context, postID string, skip int) (*TopLevelPage, error) {
	if skip < 0 {
		return nil, validationError("skip must not be negative")
	}
	tx := s.db.WithContext(ctx)

	post, err := findPost(tx, postID)
	if err != nil {
		return nil, err
	}

	var comments []models.Comment
	err = tx.Where("post_id = ? AND parent_id IS NULL", postID).
		Order("created_at DESC, id DESC").
		Offset(skip).
		Limit(s.pageSize).
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("list top-level comments: %w", err)
	}

	return &TopLevelPage{
		Comments: comments,
		HasMore:  int64(skip+len(comments)) < post.TotalParentComments,
		Counters: post.Counters(),
	}, nil
}

// ListChildren 返回 parentID 的一页直接回复，最新的在前。
// 顺序由父节点的 childIds 决定，不依赖时间戳。
func (s *CommentService) ListChildren(ctx context.Context, parentID string, skip int) (*ChildrenPage, error) {
	if skip < 0 {
		return nil, validationError("skip must not be negative")
	}
	tx := s.db.WithContext(ctx)

	parent, err := findComment(tx, parentID)
	if err != nil {
		return nil, err
	}

	total := len(parent.ChildIDs)
	page := newestFirst(parent.ChildIDs, skip, s.pageSize)
	children := make([]models.Comment, 0, len(page))
	if len(page) > 0 {
		var rows []models.Comment
		if err := tx.Where("id IN ?", page).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("load replies of %s: %w", parentID, err)
		}
		byID := make(map[string]models.Comment, len(rows))
		for _, r := range rows {
			byID[r.ID] = r
		}
		for _, id := range page {
			if c, ok := byID[id]; ok {
				children = append(children, c)
			}
		}
	}

	return &ChildrenPage{
		Children:      children,
		HasMore:       skip+len(page) < total,
		TotalChildren: total,
	}, nil
}

// newestFirst 从按创建顺序排列的 ids 中取出倒序的第 skip 条起最多 limit 条
func newestFirst(ids []string, skip, limit int) []string {
	end := len(ids) - skip
	if end <= 0 {
		return nil
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]string, 0, end-start)
	for i := end - 1; i >= start; i-- {
		out = append(out, ids[i])
	}
	return out
}

func findComment(tx *gorm.DB, id string) (*models.Comment, error) {
	var comment models.Comment
	if err := tx.Where("id = ?", id).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("comment", id)
		}
		return nil, fmt.Errorf("load comment %s: %w", id, err)
	}
	return &comment, nil
}

// lockComment 读取并锁定评论行（SELECT ... FOR UPDATE）
func lockComment(tx *gorm.DB, id string) (*models.Comment, error) {
	return findComment(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func loadCounters(tx *gorm.DB, postID string) (models.Counters, error) {
	var post models.Post
	err := tx.Select("id", "total_comments", "total_parent_comments", "total_likes").
		Where("id = ?", postID).First(&post).Error
	if err != nil {
		return models.Counters{}, fmt.Errorf("load counters of post %s: %w", postID, err)
	}
	return post.Counters(), nil
}
