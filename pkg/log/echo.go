package log

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const headerRequestID = "X-Request-ID"

// EchoMiddleware assigns a request id, puts a child logger carrying it into the
// request context and logs every completed request.
func EchoMiddleware(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			reqID := req.Header.Get(headerRequestID)
			if reqID == "" {
				reqID = uuid.New().String()
			}

			child := logger.With().
				Str(FieldRequestID, reqID).
				Str(FieldMethod, req.Method).
				Str(FieldPath, req.URL.Path).
				Str(FieldClientIP, c.RealIP()).
				Logger()

			c.Response().Header().Set(headerRequestID, reqID)
			c.SetRequest(req.WithContext(WithLogger(req.Context(), child)))

			err := next(c)
			if err != nil {
				// Let echo write the error response so the logged status is the real one.
				c.Error(err)
			}

			evt := child.Info().
				Str(FieldRoute, c.Path()).
				Int(FieldStatus, c.Response().Status).
				Float64(FieldLatency, float64(time.Since(start).Milliseconds()))
			if userID, ok := c.Get(FieldUserID).(uint); ok {
				evt = evt.Uint(FieldUserID, userID)
			}
			if hit := c.Response().Header().Get("X-Cache"); hit != "" {
				evt = evt.Str(FieldCache, hit)
			}
			evt.Msg("request completed")
			return nil
		}
	}
}
