// Package api defines the JSON wire contract shared by the HTTP handlers and
// the Go client.
package api

import "time"

type Counters struct {
	TotalComments       int64 `json:"totalComments"`
	TotalParentComments int64 `json:"totalParentComments"`
	TotalLikes          int64 `json:"totalLikes"`
}

type Comment struct {
	ID           string    `json:"id"`
	PostID       string    `json:"postId"`
	PostAuthorID string    `json:"postAuthorId"`
	AuthorID     string    `json:"authorId"`
	Body         string    `json:"body"`
	BodyHTML     string    `json:"bodyHtml"`
	ParentID     *string   `json:"parentId"`
	IsReply      bool      `json:"isReply"`
	ChildIDs     []string  `json:"childIds"`
	ChildCount   int       `json:"childCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TopLevelPage GET /api/posts/:postId/comments
type TopLevelPage struct {
	Comments []Comment `json:"comments"`
	HasMore  bool      `json:"hasMore"`
	Counters Counters  `json:"counters"`
}

// ChildrenPage GET /api/comments/:commentId/replies
type ChildrenPage struct {
	Children      []Comment `json:"children"`
	HasMore       bool      `json:"hasMore"`
	TotalChildren int       `json:"totalChildren"`
}

type CreateCommentRequest struct {
	Body           string  `json:"body" binding:"required,notblank"`
	ParentID       *string `json:"parentId"`
	NotificationID *string `json:"notificationId"`
}

type CreateCommentResponse struct {
	Comment  Comment  `json:"comment"`
	Counters Counters `json:"counters"`

	// ParentChildCount is the parent's child count after a reply was added.
	ParentChildCount *int `json:"parentChildCount,omitempty"`
}

type DeleteCommentResponse struct {
	RemovedIDs       []string `json:"removedIds"`
	ParentID         *string  `json:"parentId"`
	ParentChildCount int      `json:"parentChildCount"`
	Counters         Counters `json:"counters"`
}

type LikeRequest struct {
	Liked *bool `json:"liked" binding:"required"`
}

type LikeResponse struct {
	Liked      bool  `json:"liked"`
	TotalLikes int64 `json:"totalLikes"`
}

type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags"`
	Counters  Counters  `json:"counters"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreatePostRequest struct {
	Title string   `json:"title" binding:"required,notblank,max=300"`
	Tags  []string `json:"tags" binding:"max=10,dive,notblank,max=40"`
}

type PostList struct {
	Posts []Post `json:"posts"`
}

type Notification struct {
	ID                 string    `json:"id"`
	Type               string    `json:"type"`
	PostID             string    `json:"postId"`
	ActorID            string    `json:"actorId"`
	CommentID          *string   `json:"commentId,omitempty"`
	RepliedOnCommentID *string   `json:"repliedOnCommentId,omitempty"`
	ReplyID            *string   `json:"replyId,omitempty"`
	Seen               bool      `json:"seen"`
	CreatedAt          time.Time `json:"createdAt"`
}

type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	HasMore       bool           `json:"hasMore"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type NewNotificationsResponse struct {
	Available bool `json:"available"`
}

type ReconcileReport struct {
	PostID              string   `json:"postId"`
	Before              Counters `json:"before"`
	After               Counters `json:"after"`
	RelinkedParents     []string `json:"relinkedParents"`
	RemovedOrphans      []string `json:"removedOrphans"`
	PurgedNotifications int64    `json:"purgedNotifications"`
	ClearedReplyLinks   int64    `json:"clearedReplyLinks"`
	Changed             bool     `json:"changed"`
}

// Error codes carried in ErrorBody.
const (
	CodeValidation     = "validation_error"
	CodeUnauthorized   = "unauthorized"
	CodeForbidden      = "forbidden"
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodePartialFailure = "partial_failure"
	CodeInternal       = "internal_error"
)

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// PartialFailureDetails is the Details payload of a partial_failure error.
type PartialFailureDetails struct {
	RemovedIDs   []string `json:"removedIds"`
	RemainingIDs []string `json:"remainingIds"`
}
