package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTopLevelComment(t *testing.T) {
	svc, conn := newTestServices(t, config.CascadeTransaction)
	ctx := context.Background()
	post := mustPost(t, svc, "alice")

	res, err := svc.Comments.Create(ctx, CreateCommentInput{PostID: post.ID, AuthorID: "bob", Body: "  nice post  "})
	require.NoError(t, err)

	assert.Equal(t, "nice post", res.Comment.Body)
	assert.Equal(t, "alice", res.Comment.PostAuthorID)
	assert.Nil(t, res.Comment.ParentID)
	assert.False(t, res.Comment.IsReply)
	assert.Nil(t, res.Parent)
	assert.Equal(t, models.Counters{TotalComments: 1, TotalParentComments: 1}, res.Counters)

	assert.EqualValues(t, 1, countNotifications(t, conn, "type = ? AND recipient_id = ? AND actor_id = ? AND comment_id = ?",
		models.NotificationTypeComment, "alice", "bob", res.Comment.ID))
	assertConsistent(t, conn, post.ID)
}

func TestCreateCommentByPostAuthorSkipsNotification(t *testing.T) {
	svc, conn := newTestServices(t, config.CascadeTransaction)
	post := mustPost(t, svc, "alice")

	mustComment(t, svc, post.ID, "alice", "thanks for reading", nil)
	assert.Zero(t, countNotifications(t, conn, "post_id = ?", post.ID))
}

func TestReplyToChildlessComment(t *testing.T) {
	svc, conn := newTestServices(t, config.CascadeTransaction)
	ctx := context.Background()
	post := mustPost(t, svc, "alice")
	top := mustComment(t, svc, post.ID, "bob", "first", nil)
	before := loadPost(t, conn, post.ID)

	res, err := svc.Comments.Create(ctx, CreateCommentInput{PostID: post.ID, AuthorID: "carol", Body: "agreed", ParentID: &top.ID})
	require.NoError(t, err)

	require.NotNil(t, res.Parent)
	assert.True(t, res.Comment.IsReply)
	assert.Equal(t, top.ID, *res.Comment.ParentID)
	assert.Equal(t, before.TotalComments+1, res.Counters.TotalComments)
	assert.Equal(t, before.TotalParentComments, res.Counters.TotalParentComments)

	parent := loadComment(t, conn, top.ID)
	assert.Equal(t, models.StringList{res.Comment.ID}, parent.ChildIDs)

	assert.EqualValues(t, 1, countNotifications(t, conn, "type = ?", models.NotificationTypeReply))
	assert.EqualValues(t, 1, countNotifications(t, conn, "type = ? AND recipient_id = ? AND replied_on_comment_id = ? AND comment_id = ?",
		models.NotificationTypeReply, "bob", top.ID, res.Comment.ID))
	assertConsistent(t, conn, post.ID)
}

func TestReplyToOwnCommentSkipsNotification(t *testing.T) {
	svc, conn := newTestServices(t, config.CascadeTransaction)
	post := mustPost(t, svc, "alice")
	top := mustComment(t, svc, post.ID, "bob", "first", nil)

	mustComment(t, svc, post.ID, "bob", "edit: also this", &top)
	assert.Zero(t, countNotifications(t, conn, "type = ?", models.NotificationTypeReply))
}

func TestCreateCommentRejectsEmptyBody(t *testing.T) {
	svc, conn := newTestServices(t, config.CascadeTransaction)
	post := mustPost(t, svc, "alice")

	for _, body := range []string{"", "   ", "\n\t", "<p> </p>"} {
		_, err := svc.Comments.Create(context.Background(), CreateCommentInput{PostID: post.ID, AuthorID: "bob", Body: body})
		assert.ErrorIs(t, err, ErrValidation, "body %q", body)
	}

	assert.Equal(t, models.Counters{}, loadPost(t, conn, post.ID).Counters())
}

func TestCreateCommentNotFound(t *testing.T) {
	svc, conn := newTestServices(t, config.CascadeTransaction)
	ctx := context.Background()
	post := mustPost(t, svc, "alice")
	other := mustPost(t, svc, "dave")
	foreign := mustComment(t, svc, other.ID, "bob", "elsewhere", nil)

	_, err := svc.Comments.Create(ctx, CreateCommentInput{PostID: "missing", AuthorID: "bob", Body: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)

	missing := "missing"
	_, err = svc.Comments.Create(ctx, CreateCommentInput{PostID: post.ID, AuthorID: "bob", Body: "hi", ParentID: &missing})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Comments.Create(ctx, CreateCommentInput{PostID: post.ID, AuthorID: "bob", Body: "hi", ParentID: &foreign.ID})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, models.Counters{}, loadPost(t, conn, post.ID).Counters())
	assert.Empty(t, loadComment(t, conn, foreign.ID).ChildIDs)
}

func TestListTopLevelPaging(t *testing.T) {
	svc, _ := newTestServices(t, config.CascadeTransaction)
	ctx := context.Background()
	post := mustPost(t, svc, "alice")

	var ids []string
	for i := 0; i < 7; i++ {
		c := mustComment(t, svc, post.ID, "bob", fmt.Sprintf("comment %d", i), nil)
		ids = append(ids, c.ID)
	}
	// replies never show up as top-level entries
	first := loadCommentByID(t, svc, ids[0])
	mustComment(t, svc, post.ID, "carol", "reply", &first)

	page, err := svc.Comments.ListTopLevel(ctx, post.ID, 0)
	require.NoError(t, err)
	require.Len(t, page.Comments, 5)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids[6], page.Comments[0].ID, "newest first")
	assert.Equal(t, ids[2], page.Comments[4].ID)
	assert.EqualValues(t, 8, page.Counters.TotalComments)

	page, err = svc.Comments.ListTopLevel(ctx, post.ID, 5)
	require.NoError(t, err)
	require.Len(t, page.Comments, 2)
	assert.False(t, page.HasMore)
	assert.Equal(t, []string{ids[1], ids[0]}, commentIDs(page.Comments))

	_, err = svc.Comments.ListTopLevel(ctx, post.ID, -1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Comments.ListTopLevel(ctx, "missing", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListChildrenNewestFirst(t *testing.T) {
	svc, _ := newTestServices(t, config.CascadeTransaction)
	ctx := context.Background()
	post := mustPost(t, svc, "alice")
	top := mustComment(t, svc, post.ID, "bob", "top", nil)

	var replies []string
	for i := 0; i < 7; i++ {
		r := mustComment(t, svc, post.ID, "carol", fmt.Sprintf("reply %d", i), &top)
		replies = append(replies, r.ID)
	}

	page, err := svc.Comments.ListChildren(ctx, top.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{replies[6], replies[5], replies[4], replies[3], replies[2]}, commentIDs(page.Children))
	assert.True(t, page.HasMore)
	assert.Equal(t, 7, page.TotalChildren)

	page, err = svc.Comments.ListChildren(ctx, top.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{replies[1], replies[0]}, commentIDs(page.Children))
	assert.False(t, page.HasMore)

	page, err = svc.Comments.ListChildren(ctx, top.ID, 9)
	require.NoError(t, err)
	assert.Empty(t, page.Children)
	assert.False(t, page.HasMore)

	_, err = svc.Comments.ListChildren(ctx, "missing", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentRepliesKeepLinkage(t *testing.T) {
	svc, conn := newTestServices(t, config.CascadeTransaction)
	ctx := context.Background()
	post := mustPost(t, svc, "alice")
	top := mustComment(t, svc, post.ID, "bob", "top", nil)

	const writers = 12
	var wg sync.WaitGroup
	errs := make(chan error, writers*2)
	for i := 0; i < writers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Comments.Create(ctx, CreateCommentInput{
				PostID: post.ID, AuthorID: fmt.Sprintf("user-%d", i), Body: "reply", ParentID: &top.ID,
			})
			errs <- err
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Comments.Create(ctx, CreateCommentInput{
				PostID: post.ID, AuthorID: fmt.Sprintf("user-%d", i), Body: "top-level",
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	parent := loadComment(t, conn, top.ID)
	assert.Len(t, parent.ChildIDs, writers)
	p := loadPost(t, conn, post.ID)
	assert.EqualValues(t, 1+2*writers, p.TotalComments)
	assert.EqualValues(t, 1+writers, p.TotalParentComments)
	assertConsistent(t, conn, post.ID)
}

func TestNewestFirst(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	assert.Equal(t, []string{"d", "c"}, newestFirst(ids, 0, 2))
	assert.Equal(t, []string{"b", "a"}, newestFirst(ids, 2, 5))
	assert.Nil(t, newestFirst(ids, 4, 2))
	assert.Nil(t, newestFirst(nil, 0, 5))
}

func loadCommentByID(t *testing.T, svc *Services, id string) models.Comment {
	t.Helper()
	c, err := svc.Comments.Get(context.Background(), id)
	require.NoError(t, err)
	return *c
}

func commentIDs(comments []models.Comment) []string {
	out := make([]string, 0, len(comments))
	for _, c := range comments {
		out = append(out, c.ID)
	}
	return out
}
