package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"inkwell/internal/api"
	"inkwell/internal/config"
	"inkwell/internal/db/dbtest"
	"inkwell/internal/middleware"
	"inkwell/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Config{
		SessionSecret:   "test-secret",
		TrustUserHeader: true,
		AdminUserIDs:    []string{"admin"},
	}
	svc, err := services.New(dbtest.New(t), services.Options{
		CommentPageSize:      2,
		NotificationPageSize: 10,
		PostPageSize:         20,
		CascadeMode:          config.CascadeTransaction,
		PostCacheSize:        16,
	})
	require.NoError(t, err)
	return &testServer{t: t, engine: New(Deps{Config: cfg, Services: svc})}
}

// do 发送请求并在 out 非空时解码响应
func (s *testServer) do(method, path, user string, body any, out any) int {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(middleware.UserHeader, user)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	if out != nil && w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func (s *testServer) createPost(author, title string) api.Post {
	var post api.Post
	code := s.do(http.MethodPost, "/api/posts", author, api.CreatePostRequest{Title: title}, &post)
	require.Equal(s.t, http.StatusCreated, code)
	return post
}

func (s *testServer) comment(postID, user, body string, parentID *string) api.CreateCommentResponse {
	var res api.CreateCommentResponse
	code := s.do(http.MethodPost, "/api/posts/"+postID+"/comments", user,
		api.CreateCommentRequest{Body: body, ParentID: parentID}, &res)
	require.Equal(s.t, http.StatusCreated, code)
	return res
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAnonymousWritesRejected(t *testing.T) {
	s := newTestServer(t)
	post := s.createPost("alice", "Hello")

	var errBody api.ErrorBody
	code := s.do(http.MethodPost, "/api/posts/"+post.ID+"/comments", "", api.CreateCommentRequest{Body: "hi"}, &errBody)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, api.CodeUnauthorized, errBody.Error.Code)

	// 公共读接口不需要登录
	var page api.TopLevelPage
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/posts/"+post.ID+"/comments", "", nil, &page))
	assert.Empty(t, page.Comments)
}

func TestCommentThreadFlow(t *testing.T) {
	s := newTestServer(t)
	post := s.createPost("alice", "Threads")

	first := s.comment(post.ID, "bob", "first", nil)
	second := s.comment(post.ID, "carol", "second", nil)
	third := s.comment(post.ID, "dave", "third", nil)
	assert.Equal(t, int64(3), third.Counters.TotalParentComments)

	reply := s.comment(post.ID, "alice", "thanks **bob**", &first.Comment.ID)
	assert.True(t, reply.Comment.IsReply)
	assert.Equal(t, first.Comment.ID, *reply.Comment.ParentID)
	assert.Contains(t, reply.Comment.BodyHTML, "<strong>bob</strong>")
	assert.Equal(t, int64(4), reply.Counters.TotalComments)
	assert.Equal(t, int64(3), reply.Counters.TotalParentComments)
	require.NotNil(t, reply.ParentChildCount)
	assert.Equal(t, 1, *reply.ParentChildCount)

	// 第一页：最新的两条
	var page api.TopLevelPage
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/posts/"+post.ID+"/comments", "", nil, &page))
	require.Len(t, page.Comments, 2)
	assert.Equal(t, third.Comment.ID, page.Comments[0].ID)
	assert.Equal(t, second.Comment.ID, page.Comments[1].ID)
	assert.True(t, page.HasMore)

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/posts/"+post.ID+"/comments?skip=2", "", nil, &page))
	require.Len(t, page.Comments, 1)
	assert.Equal(t, first.Comment.ID, page.Comments[0].ID)
	assert.Equal(t, 1, page.Comments[0].ChildCount)
	assert.False(t, page.HasMore)

	var children api.ChildrenPage
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/comments/"+first.Comment.ID+"/replies", "", nil, &children))
	require.Len(t, children.Children, 1)
	assert.Equal(t, reply.Comment.ID, children.Children[0].ID)
	assert.Equal(t, 1, children.TotalChildren)
	assert.False(t, children.HasMore)

	// 只有作者或文章作者可以删除
	var errBody api.ErrorBody
	assert.Equal(t, http.StatusForbidden,
		s.do(http.MethodDelete, "/api/comments/"+first.Comment.ID, "mallory", nil, &errBody))
	assert.Equal(t, api.CodeForbidden, errBody.Error.Code)

	var deleted api.DeleteCommentResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/comments/"+first.Comment.ID, "bob", nil, &deleted))
	assert.Equal(t, []string{reply.Comment.ID, first.Comment.ID}, deleted.RemovedIDs)
	assert.Nil(t, deleted.ParentID)
	assert.Equal(t, int64(2), deleted.Counters.TotalComments)
	assert.Equal(t, int64(2), deleted.Counters.TotalParentComments)

	assert.Equal(t, http.StatusNotFound,
		s.do(http.MethodGet, "/api/comments/"+first.Comment.ID+"/replies", "", nil, nil))
}

func TestCreateCommentValidation(t *testing.T) {
	s := newTestServer(t)
	post := s.createPost("alice", "Validation")

	var errBody api.ErrorBody
	code := s.do(http.MethodPost, "/api/posts/"+post.ID+"/comments", "bob", api.CreateCommentRequest{Body: "   "}, &errBody)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, api.CodeValidation, errBody.Error.Code)

	missing := "does-not-exist"
	code = s.do(http.MethodPost, "/api/posts/"+post.ID+"/comments", "bob",
		api.CreateCommentRequest{Body: "hi", ParentID: &missing}, &errBody)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, api.CodeNotFound, errBody.Error.Code)

	code = s.do(http.MethodPost, "/api/posts/nope/comments", "bob", api.CreateCommentRequest{Body: "hi"}, &errBody)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestBadSkipRejected(t *testing.T) {
	s := newTestServer(t)
	post := s.createPost("alice", "Skip")

	for _, skip := range []string{"-1", "abc"} {
		var errBody api.ErrorBody
		code := s.do(http.MethodGet, fmt.Sprintf("/api/posts/%s/comments?skip=%s", post.ID, skip), "", nil, &errBody)
		assert.Equal(t, http.StatusBadRequest, code, skip)
		assert.Equal(t, api.CodeValidation, errBody.Error.Code)
	}
}

func TestLikeToggle(t *testing.T) {
	s := newTestServer(t)
	post := s.createPost("alice", "Likes")

	liked := true
	var res api.LikeResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/posts/"+post.ID+"/like", "bob", api.LikeRequest{Liked: &liked}, &res))
	assert.True(t, res.Liked)
	assert.Equal(t, int64(1), res.TotalLikes)

	// 重复点赞不改变计数
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/posts/"+post.ID+"/like", "bob", api.LikeRequest{Liked: &liked}, &res))
	assert.Equal(t, int64(1), res.TotalLikes)

	var status map[string]bool
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/posts/"+post.ID+"/like", "bob", nil, &status))
	assert.True(t, status["liked"])

	unliked := false
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/posts/"+post.ID+"/like", "bob", api.LikeRequest{Liked: &unliked}, &res))
	assert.False(t, res.Liked)
	assert.Equal(t, int64(0), res.TotalLikes)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/posts/"+post.ID+"/like", "bob", map[string]any{}, nil))
}

func TestNotificationFeed(t *testing.T) {
	s := newTestServer(t)
	post := s.createPost("alice", "Feed")

	top := s.comment(post.ID, "bob", "nice post", nil)
	s.comment(post.ID, "carol", "agreed", &top.Comment.ID)

	var count api.CountResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/notifications/count", "alice", nil, &count))
	assert.Equal(t, int64(1), count.Count)

	var fresh api.NewNotificationsResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/notifications/new", "bob", nil, &fresh))
	assert.True(t, fresh.Available)

	var page api.NotificationPage
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/notifications?filter=reply", "bob", nil, &page))
	require.Len(t, page.Notifications, 1)
	n := page.Notifications[0]
	assert.Equal(t, "reply", n.Type)
	assert.Equal(t, "carol", n.ActorID)
	assert.Equal(t, top.Comment.ID, *n.RepliedOnCommentID)

	// 回复通知：新评论挂到原评论下并关联通知
	var res api.CreateCommentResponse
	notificationID := n.ID
	code := s.do(http.MethodPost, "/api/posts/"+post.ID+"/comments", "bob",
		api.CreateCommentRequest{Body: "thanks", ParentID: n.CommentID, NotificationID: &notificationID}, &res)
	require.Equal(t, http.StatusCreated, code)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/api/notifications/"+n.ID+"/read", "bob", nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/notifications/"+n.ID+"/read", "alice", nil, nil))

	var readAll api.CountResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/notifications/read-all", "alice", nil, &readAll))
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/notifications/new", "alice", nil, &fresh))
	assert.False(t, fresh.Available)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/notifications/"+n.ID, "bob", nil, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/notifications?filter=bogus", "bob", nil, nil))
}

func TestAdminReconcile(t *testing.T) {
	s := newTestServer(t)
	post := s.createPost("alice", "Admin")
	s.comment(post.ID, "bob", "hello", nil)

	var errBody api.ErrorBody
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/admin/posts/"+post.ID+"/reconcile", "bob", nil, &errBody))
	assert.Equal(t, api.CodeForbidden, errBody.Error.Code)

	var report api.ReconcileReport
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/admin/posts/"+post.ID+"/reconcile", "admin", nil, &report))
	assert.Equal(t, post.ID, report.PostID)
	assert.False(t, report.Changed)
	assert.Equal(t, int64(1), report.After.TotalComments)
	assert.Empty(t, report.RemovedOrphans)
}
