package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/faqbridge/faqbridge-backend/internal/platform/ctxutil"
)

const (
	headerUserID    = "X-User-Id"
	headerSessionID = "X-Session-Id"
)

// AttachRequestContext lifts the caller identity headers onto the
// request context so downstream logging can correlate per-user.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(headerUserID))
		sessionID := strings.TrimSpace(c.GetHeader(headerSessionID))
		if userID == "" && sessionID == "" {
			c.Next()
			return
		}
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{
			UserID:    userID,
			SessionID: sessionID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
