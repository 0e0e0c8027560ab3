package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/pgjobs/goodjob/internal/requestid"
)

const headerRequestID = "X-Request-ID"

// RequestID attaches a correlation id to the request context and echoes it
// back on the response, the same shape as the teacher's
// internal/transport/http/middleware/requestid.go.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = requestid.New()
		}
		c.Request = c.Request.WithContext(requestid.WithRequestID(c.Request.Context(), id))
		c.Header(headerRequestID, id)
		c.Next()
	}
}
