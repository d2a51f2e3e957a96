package middleware

import (
	"context"

	"docarchive/internal/common"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

// RequestID tags every request with a uuid, echoes it in X-Request-ID and
// stores it in the request context for logging.
func RequestID() echo.MiddlewareFunc {
	return echoMiddleware.RequestIDWithConfig(echoMiddleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, requestID string) {
			ctx := context.WithValue(c.Request().Context(), common.RequestIDKey, requestID)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	})
}

// GetRequestIDFromContext returns the id assigned by RequestID.
func GetRequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(common.RequestIDKey).(string)
	return requestID
}
