package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"inkwell/internal/api"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const CheckUserKey = "user_id"

// UserHeader carries the verified user id when a trusted gateway sits in front.
const UserHeader = "X-User-ID"

// LoadUser resolves the caller from the session cookie, falling back to the
// gateway header when trustHeader is set, and stores the id on the context.
func LoadUser(trustHeader bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if userID := session.Get("user_id"); userID != nil {
			if id := fmt.Sprint(userID); id != "" {
				c.Set(CheckUserKey, id)
			}
		}

		if _, ok := c.Get(CheckUserKey); !ok && trustHeader {
			if id := strings.TrimSpace(c.GetHeader(UserHeader)); id != "" {
				c.Set(CheckUserKey, id)
			}
		}
		c.Next()
	}
}

// AuthRequired ensures a user is logged in
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorBody{Error: api.ErrorDetail{
				Code:    api.CodeUnauthorized,
				Message: "login required",
			}})
			return
		}
		c.Next()
	}
}

// AdminOnly 只允许配置中的管理员访问
func AdminOnly(adminIDs []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(adminIDs))
	for _, id := range adminIDs {
		allowed[id] = true
	}
	return func(c *gin.Context) {
		if !allowed[CurrentUserID(c)] {
			c.AbortWithStatusJSON(http.StatusForbidden, api.ErrorBody{Error: api.ErrorDetail{
				Code:    api.CodeForbidden,
				Message: "admin only",
			}})
			return
		}
		c.Next()
	}
}

// CurrentUserID returns the caller's id, or "" when anonymous.
func CurrentUserID(c *gin.Context) string {
	return c.GetString(CheckUserKey)
}
