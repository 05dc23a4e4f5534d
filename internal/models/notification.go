package models

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeLike    NotificationType = "like"
	NotificationTypeComment NotificationType = "comment"
	NotificationTypeReply   NotificationType = "reply"
)

type Notification struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id"`
	Type        NotificationType `gorm:"type:varchar(16);not null;index" json:"type"`
	PostID      string           `gorm:"size:36;not null;index" json:"postId"`
	RecipientID string           `gorm:"size:64;not null;index" json:"recipientId"` // Receiver
	ActorID     string           `gorm:"size:64;not null" json:"actorId"`           // Sender

	CommentID          *string `gorm:"size:36;index" json:"commentId"`
	RepliedOnCommentID *string `gorm:"size:36;index" json:"repliedOnCommentId"` // reply 类型才有
	ReplyID            *string `gorm:"size:36;index" json:"replyId"`            // 在通知里直接回复产生的评论

	// like 通知的去重键 "postID:actorID"，其他类型为空
	DedupKey *string `gorm:"size:160;uniqueIndex" json:"-"`

	Seen      bool      `gorm:"not null;index" json:"seen"`
	CreatedAt time.Time `json:"createdAt"`
}

func LikeDedupKey(postID, actorID string) string {
	return postID + ":" + actorID
}
