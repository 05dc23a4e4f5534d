package services

import (
	"context"
	"fmt"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

type NotificationFilter string

const (
	FilterAll     NotificationFilter = "all"
	FilterLike    NotificationFilter = "like"
	FilterComment NotificationFilter = "comment"
	FilterReply   NotificationFilter = "reply"
)

func ParseNotificationFilter(s string) (NotificationFilter, error) {
	switch f := NotificationFilter(s); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterLike, FilterComment, FilterReply:
		return f, nil
	default:
		return "", validationError("unknown notification filter %q", s)
	}
}

type NotificationPage struct {
	Notifications []models.Notification
	HasMore       bool
}

// NotificationService 用户的通知列表
type NotificationService struct {
	db       *gorm.DB
	pageSize int
}

func NewNotificationService(db *gorm.DB, pageSize int) *NotificationService {
	return &NotificationService{db: db, pageSize: pageSize}
}

// List 返回第 page 页通知（从 1 开始）。deletedCount 是客户端在之前页面里
// 已删除的条数，用来修正偏移量。返回的通知随后被标记为已读。
func (s *NotificationService) List(ctx context.Context, recipientID string, filter NotificationFilter, page, deletedCount int) (*NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if deletedCount < 0 {
		return nil, validationError("deletedDocCount must not be negative")
	}
	skip := (page-1)*s.pageSize - deletedCount
	if skip < 0 {
		skip = 0
	}

	var notifications []models.Notification
	err := s.scope(ctx, recipientID, filter).
		Order("created_at DESC, id DESC").
		Offset(skip).
		Limit(s.pageSize + 1).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	hasMore := len(notifications) > s.pageSize
	if hasMore {
		notifications = notifications[:s.pageSize]
	}

	unseen := make([]string, 0, len(notifications))
	for _, n := range notifications {
		if !n.Seen {
			unseen = append(unseen, n.ID)
		}
	}
	if len(unseen) > 0 {
		err := s.db.WithContext(ctx).Model(&models.Notification{}).
			Where("id IN ?", unseen).
			UpdateColumn("seen", true).Error
		if err != nil {
			return nil, fmt.Errorf("mark notifications seen: %w", err)
		}
	}

	return &NotificationPage{Notifications: notifications, HasMore: hasMore}, nil
}

func (s *NotificationService) Count(ctx context.Context, recipientID string, filter NotificationFilter) (int64, error) {
	var count int64
	if err := s.scope(ctx, recipientID, filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return count, nil
}

// HasNew reports whether the recipient has unseen notifications.
func (s *NotificationService) HasNew(ctx context.Context, recipientID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND seen = ?", recipientID, false).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check new notifications: %w", err)
	}
	return count > 0, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, recipientID, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		UpdateColumn("seen", true)
	if res.Error != nil {
		return fmt.Errorf("mark notification read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFoundError("notification", id)
	}
	return nil
}

func (s *NotificationService) ReadAll(ctx context.Context, recipientID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND seen = ?", recipientID, false).
		UpdateColumn("seen", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *NotificationService) Delete(ctx context.Context, recipientID, id string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Delete(&models.Notification{})
	if res.Error != nil {
		return fmt.Errorf("delete notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFoundError("notification", id)
	}
	return nil
}

func (s *NotificationService) scope(ctx context.Context, recipientID string, filter NotificationFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", recipientID)
	if filter != "" && filter != FilterAll {
		q = q.Where("type = ?", string(filter))
	}
	return q
}
