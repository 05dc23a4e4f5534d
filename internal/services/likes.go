package services

import (
	"context"
	"fmt"

	"inkwell/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LikeResult struct {
	Liked      bool
	TotalLikes int64
}

// LikeService 点赞开关。liked 表示期望状态，重复提交同一状态不会改变计数。
type LikeService struct {
	db       *gorm.DB
	posts    *PostService
	notifier *Notifier
}

func NewLikeService(db *gorm.DB, posts *PostService, notifier *Notifier) *LikeService {
	return &LikeService{db: db, posts: posts, notifier: notifier}
}

func (s *LikeService) Toggle(ctx context.Context, postID, userID string, liked bool) (*LikeResult, error) {
	if userID == "" {
		return nil, validationError("user is required")
	}

	var (
		total     int64
		notifyErr error
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		author, err := s.posts.AuthorOf(tx, postID)
		if err != nil {
			return err
		}

		var changed bool
		if liked {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.PostLike{PostID: postID, UserID: userID})
			if res.Error != nil {
				return fmt.Errorf("insert like: %w", res.Error)
			}
			if res.RowsAffected > 0 {
				changed = true
				if err := tx.Model(&models.Post{}).Where("id = ?", postID).
					UpdateColumn("total_likes", gorm.Expr("total_likes + ?", 1)).Error; err != nil {
					return fmt.Errorf("increment likes: %w", err)
				}
			}
		} else {
			res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostLike{})
			if res.Error != nil {
				return fmt.Errorf("delete like: %w", res.Error)
			}
			if res.RowsAffected > 0 {
				changed = true
				dec := tx.Model(&models.Post{}).Where("id = ? AND total_likes >= 1", postID).
					UpdateColumn("total_likes", gorm.Expr("total_likes - ?", 1))
				if dec.Error != nil {
					return fmt.Errorf("decrement likes: %w", dec.Error)
				}
				if dec.RowsAffected == 0 {
					return fmt.Errorf("likes of post %s would go negative", postID)
				}
			}
		}

		counters, err := loadCounters(tx, postID)
		if err != nil {
			return err
		}
		total = counters.TotalLikes

		// 通知与点赞记录在同一事务内提交，并发的取消点赞只能看到两者都在或都不在
		if changed {
			notifyErr = s.notifier.OnLikeToggled(tx, postID, author, userID, liked)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Report(notifyErr)
	return &LikeResult{Liked: liked, TotalLikes: total}, nil
}

// IsLiked reports whether userID currently likes postID.
func (s *LikeService) IsLiked(ctx context.Context, postID, userID string) (bool, error) {
	if _, err := findPost(s.db.WithContext(ctx), postID); err != nil {
		return false, err
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.PostLike{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check like: %w", err)
	}
	return count > 0, nil
}
