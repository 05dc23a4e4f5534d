package models

import (
	"time"
)

// Comment 评论或回复。ParentID 为空表示顶级评论。
// ChildIDs 按创建顺序记录直接子回复，只由发表回复和级联删除修改。
type Comment struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	PostID       string     `gorm:"size:36;not null;index:idx_comments_post_parent,priority:1" json:"postId"`
	PostAuthorID string     `gorm:"size:64;not null" json:"postAuthorId"`
	AuthorID     string     `gorm:"size:64;not null;index" json:"authorId"`
	Body         string     `gorm:"type:text;not null" json:"body"`
	ParentID     *string    `gorm:"size:36;index:idx_comments_post_parent,priority:2" json:"parentId"`
	IsReply      bool       `gorm:"not null" json:"isReply"`
	ChildIDs     StringList `gorm:"column:child_ids;not null" json:"childIds"`
	CreatedAt    time.Time  `gorm:"index" json:"createdAt"`
}
