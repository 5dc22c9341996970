package middleware

import (
	"github.com/gin-gonic/gin"
)

const userIDKey = "userID"

// Identity lifts the caller's user id from the X-User-ID header into the
// request context. Real authentication sits in front of this service; the
// header is what the gateway forwards.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader("X-User-ID"); id != "" {
			c.Set(userIDKey, id)
		}
		c.Next()
	}
}

// UserID returns the caller's user id, empty if the request is anonymous
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
