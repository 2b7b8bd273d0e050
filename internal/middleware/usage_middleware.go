package middleware

import "github.com/gin-gonic/gin"

// UsageRecorder schedules an asynchronous usage update for a key.
type UsageRecorder interface {
	Record(keyID string)
}

// UsageMiddleware records usage for fully admitted requests. Route-level
// checks such as RequirePermission run inside c.Next, so the decision is made
// once they have passed. Record does not block.
func UsageMiddleware(recorder UsageRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.IsAborted() {
			return
		}
		if apiKey := GetAPIKey(c); apiKey != nil {
			recorder.Record(apiKey.ID)
		}
	}
}
