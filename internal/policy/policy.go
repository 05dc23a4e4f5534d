// Package policy holds the authorization rules for discussion threads.
package policy

import "inkwell/internal/models"

// CanDelete reports whether requesterID may remove comment and everything
// below it. The comment author and the post author may; nobody else.
// Authorization is checked once at the root of a subtree.
func CanDelete(comment models.Comment, requesterID, postAuthorID string) bool {
	if requesterID == "" {
		return false
	}
	return requesterID == comment.AuthorID || requesterID == postAuthorID
}

// CanComment reports whether userID may write into the thread of a post.
func CanComment(userID string) bool {
	return userID != ""
}
