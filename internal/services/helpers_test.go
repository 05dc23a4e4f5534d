package services

import (
	"context"
	"testing"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/db/dbtest"
	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestServices(t *testing.T, mode config.CascadeMode) (*Services, *gorm.DB) {
	t.Helper()
	conn := dbtest.New(t)
	svc, err := New(conn, Options{
		CommentPageSize:      5,
		NotificationPageSize: 3,
		PostPageSize:         10,
		CascadeMode:          mode,
		PostCacheSize:        16,
		PostCacheTTL:         time.Minute,
		ReconcileInterval:    10 * time.Millisecond,
	})
	require.NoError(t, err)
	return svc, conn
}

func mustPost(t *testing.T, svc *Services, author string) *models.Post {
	t.Helper()
	post, err := svc.Posts.Create(context.Background(), CreatePostInput{AuthorID: author, Title: "A post by " + author})
	require.NoError(t, err)
	return post
}

func mustComment(t *testing.T, svc *Services, postID, author, body string, parent *models.Comment) models.Comment {
	t.Helper()
	in := CreateCommentInput{PostID: postID, AuthorID: author, Body: body}
	if parent != nil {
		in.ParentID = &parent.ID
	}
	res, err := svc.Comments.Create(context.Background(), in)
	require.NoError(t, err)
	return res.Comment
}

func loadPost(t *testing.T, conn *gorm.DB, id string) models.Post {
	t.Helper()
	var post models.Post
	require.NoError(t, conn.Where("id = ?", id).First(&post).Error)
	return post
}

func loadComment(t *testing.T, conn *gorm.DB, id string) models.Comment {
	t.Helper()
	var c models.Comment
	require.NoError(t, conn.Where("id = ?", id).First(&c).Error)
	return c
}

func countNotifications(t *testing.T, conn *gorm.DB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.Notification{}).Where(query, args...).Count(&n).Error)
	return n
}

// assertConsistent checks that counters match row counts and that childIds
// and parentId agree in both directions.
func assertConsistent(t *testing.T, conn *gorm.DB, postID string) {
	t.Helper()

	post := loadPost(t, conn, postID)
	var comments []models.Comment
	require.NoError(t, conn.Where("post_id = ?", postID).Find(&comments).Error)
	var likes int64
	require.NoError(t, conn.Model(&models.PostLike{}).Where("post_id = ?", postID).Count(&likes).Error)

	byID := make(map[string]models.Comment, len(comments))
	children := make(map[string][]string)
	var topLevel int64
	for _, c := range comments {
		byID[c.ID] = c
		if c.ParentID == nil {
			topLevel++
			assert.False(t, c.IsReply, "top-level comment %s flagged as reply", c.ID)
			continue
		}
		assert.True(t, c.IsReply, "reply %s not flagged", c.ID)
		children[*c.ParentID] = append(children[*c.ParentID], c.ID)
	}

	assert.EqualValues(t, len(comments), post.TotalComments, "totalComments")
	assert.Equal(t, topLevel, post.TotalParentComments, "totalParentComments")
	assert.Equal(t, likes, post.TotalLikes, "totalLikes")

	for _, c := range comments {
		if c.ParentID != nil {
			_, ok := byID[*c.ParentID]
			assert.True(t, ok, "comment %s has dangling parent %s", c.ID, *c.ParentID)
		}
		assert.ElementsMatch(t, children[c.ID], []string(c.ChildIDs), "childIds of %s", c.ID)
	}
}
