package models

import (
	"time"
)

type Post struct {
	ID       string     `gorm:"primaryKey;size:36" json:"id"`
	AuthorID string     `gorm:"size:64;not null;index" json:"authorId"`
	Title    string     `gorm:"not null" json:"title"`
	Tags     StringList `gorm:"type:text" json:"tags"`

	// 聚合计数，只通过原子增减或 reconcile 修改
	TotalComments       int64 `gorm:"not null;default:0" json:"totalComments"`
	TotalParentComments int64 `gorm:"not null;default:0" json:"totalParentComments"`
	TotalLikes          int64 `gorm:"not null;default:0" json:"totalLikes"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Counters struct {
	TotalComments       int64 `json:"totalComments"`
	TotalParentComments int64 `json:"totalParentComments"`
	TotalLikes          int64 `json:"totalLikes"`
}

func (p Post) Counters() Counters {
	return Counters{
		TotalComments:       p.TotalComments,
		TotalParentComments: p.TotalParentComments,
		TotalLikes:          p.TotalLikes,
	}
}

// PostLike 点赞记录，每个用户对每篇文章最多一条
type PostLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    string    `gorm:"size:36;not null;uniqueIndex:idx_post_likes_post_user,priority:1" json:"postId"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:idx_post_likes_post_user,priority:2" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}
