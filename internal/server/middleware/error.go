package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/ai-sdk-gateway/pkg/api"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error attached by a handler as an RFC 9457
// problem. Nothing is written if the handler already sent a response, as
// streaming handlers do once headers are committed.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err

		var problem *api.Problem
		if errors.As(err, &problem) {
			if problem.Log != nil {
				logger.Error("Request failed",
					zap.Int("status", problem.Status),
					zap.String("detail", problem.Detail),
					zap.Error(problem.Log),
				)
			}

			// RFC 9457 dictates the json is at the root
			c.Header("Content-Type", "application/problem+json")
			c.JSON(problem.Status, problem)
			c.Abort()
			return
		}

		logger.Error("Unhandled error", zap.Error(err))

		c.JSON(http.StatusInternalServerError, api.New(
			http.StatusInternalServerError,
			"Internal Server Error",
			"An unexpected error occurred.",
		))
		c.Abort()
	}
}
