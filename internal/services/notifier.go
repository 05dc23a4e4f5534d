package services

import (
	"errors"
	"fmt"

	"inkwell/internal/logger"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notifier 在评论、回复、点赞的事务内写入或清理通知。
// 每次写入都在嵌套事务（savepoint）里执行：失败只回滚 savepoint，
// 主操作照常提交。失败由调用方在提交后交给 Report，记录日志和指标，
// 并把文章交给 reconcile 队列清理残留。
type Notifier struct {
	onFailure func(postID string)
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

// OnFailure registers fn to be called with the post id whenever a side effect fails.
func (n *Notifier) OnFailure(fn func(postID string)) {
	n.onFailure = fn
}

// SideEffectError is a notification write that was rolled back to its savepoint.
type SideEffectError struct {
	Event  string
	PostID string
	Err    error
}

func (e *SideEffectError) Error() string {
	return fmt.Sprintf("%s notification: %v", e.Event, e.Err)
}

func (e *SideEffectError) Unwrap() error {
	return e.Err
}

// Report 在主事务提交后处理失败的通知；err 为 nil 时什么也不做
func (n *Notifier) Report(err error) {
	var failed *SideEffectError
	if !errors.As(err, &failed) {
		if err != nil {
			logger.Error("Notification side effect failed", zap.Error(err))
		}
		return
	}
	logger.Error("Notification side effect failed",
		zap.String("event", failed.Event),
		zap.String("postId", failed.PostID),
		zap.Error(failed))
	observability.NotificationFailures.WithLabelValues(failed.Event).Inc()
	if n.onFailure != nil {
		n.onFailure(failed.PostID)
	}
}

// savepoint 在 tx 内开启嵌套事务执行 fn，失败包装成 SideEffectError
func savepoint(tx *gorm.DB, event, postID string, fn func(sp *gorm.DB) error) error {
	if err := tx.Transaction(fn); err != nil {
		return &SideEffectError{Event: event, PostID: postID, Err: err}
	}
	return nil
}

// OnLikeToggled 点赞时创建通知（已存在则跳过），取消点赞时删除。
// tx 必须是改动点赞记录的同一个事务，这样通知与点赞状态一起提交。
func (n *Notifier) OnLikeToggled(tx *gorm.DB, postID, postAuthorID, actorID string, liked bool) error {
	// 不要通知自己
	if actorID == postAuthorID {
		return nil
	}
	key := models.LikeDedupKey(postID, actorID)

	if liked {
		return savepoint(tx, "like", postID, func(sp *gorm.DB) error {
			notification := models.Notification{
				ID:          newID(),
				Type:        models.NotificationTypeLike,
				PostID:      postID,
				RecipientID: postAuthorID,
				ActorID:     actorID,
				DedupKey:    &key,
			}
			res := sp.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "dedup_key"}},
				DoNothing: true,
			}).Create(&notification)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				observability.NotificationsEmitted.WithLabelValues(string(models.NotificationTypeLike), "create").Inc()
			}
			return nil
		})
	}

	return savepoint(tx, "unlike", postID, func(sp *gorm.DB) error {
		res := sp.Where("dedup_key = ?", key).Delete(&models.Notification{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			observability.NotificationsEmitted.WithLabelValues(string(models.NotificationTypeLike), "delete").Add(float64(res.RowsAffected))
		}
		return nil
	})
}

// OnCommentCreated notifies recipientID about a new top-level comment.
func (n *Notifier) OnCommentCreated(tx *gorm.DB, comment models.Comment, recipientID string) error {
	if recipientID == "" || recipientID == comment.AuthorID {
		return nil
	}
	commentID := comment.ID
	return n.create(tx, "comment", models.Notification{
		ID:          newID(),
		Type:        models.NotificationTypeComment,
		PostID:      comment.PostID,
		RecipientID: recipientID,
		ActorID:     comment.AuthorID,
		CommentID:   &commentID,
	})
}

// OnReplyCreated 只通知被回复评论的作者
func (n *Notifier) OnReplyCreated(tx *gorm.DB, reply, parent models.Comment) error {
	if parent.AuthorID == reply.AuthorID {
		return nil
	}
	replyID, parentID := reply.ID, parent.ID
	return n.create(tx, "reply", models.Notification{
		ID:                 newID(),
		Type:               models.NotificationTypeReply,
		PostID:             reply.PostID,
		RecipientID:        parent.AuthorID,
		ActorID:            reply.AuthorID,
		CommentID:          &replyID,
		RepliedOnCommentID: &parentID,
	})
}

// OnCommentsDeleted removes notifications generated by the removed comments
// and unlinks notifications that were answered with one of them.
func (n *Notifier) OnCommentsDeleted(tx *gorm.DB, postID string, commentIDs []string) error {
	if len(commentIDs) == 0 {
		return nil
	}
	return savepoint(tx, "comment_deleted", postID, func(sp *gorm.DB) error {
		for start := 0; start < len(commentIDs); start += deleteChunkSize {
			ids := commentIDs[start:min(start+deleteChunkSize, len(commentIDs))]

			res := sp.Where("comment_id IN ? OR replied_on_comment_id IN ?", ids, ids).
				Delete(&models.Notification{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				observability.NotificationsEmitted.WithLabelValues("comment", "delete").Add(float64(res.RowsAffected))
			}

			err := sp.Model(&models.Notification{}).
				Where("reply_id IN ?", ids).
				UpdateColumn("reply_id", nil).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// LinkReply 记录用户在某条通知里直接发表的回复
func (n *Notifier) LinkReply(tx *gorm.DB, notificationID, recipientID string, reply models.Comment) error {
	return savepoint(tx, "link_reply", reply.PostID, func(sp *gorm.DB) error {
		res := sp.Model(&models.Notification{}).
			Where("id = ? AND recipient_id = ?", notificationID, recipientID).
			UpdateColumn("reply_id", reply.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			logger.Warn("Notification to link reply not found",
				zap.String("notificationId", notificationID),
				zap.String("replyId", reply.ID))
		}
		return nil
	})
}

func (n *Notifier) create(tx *gorm.DB, event string, notification models.Notification) error {
	return savepoint(tx, event, notification.PostID, func(sp *gorm.DB) error {
		if err := sp.Create(&notification).Error; err != nil {
			return err
		}
		observability.NotificationsEmitted.WithLabelValues(string(notification.Type), "create").Inc()
		return nil
	})
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
