package server

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const requestIDKey = "request_id"

// RequestID propagates X-Request-ID, generating one when absent.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Set(requestIDKey, rid)
			c.Response().Header().Set(echo.HeaderXRequestID, rid)
			return next(c)
		}
	}
}

// Logger logs each request with method, path, status and duration.
func Logger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Resolve the status now; the error handler runs later.
				c.Error(err)
			}

			req := c.Request()
			attrs := []any{
				"request_id", c.Get(requestIDKey),
				"method", req.Method,
				"path", req.URL.Path,
				"status", c.Response().Status,
				"duration", time.Since(start).Round(time.Millisecond),
				"remote", c.RealIP(),
			}
			if err != nil {
				slog.Warn("request", append(attrs, "error", err)...)
			} else {
				slog.Info("request", attrs...)
			}
			return nil
		}
	}
}

// Recovery turns a panic into a 500 and logs the stack.
func Recovery() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic recovered",
						"request_id", c.Get(requestIDKey),
						"error", fmt.Sprintf("%v", r),
						"path", c.Request().URL.Path,
						"stack", string(debug.Stack()),
					)
					err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
				}
			}()
			return next(c)
		}
	}
}

// APIKeyAuth requires "Authorization: Bearer <key>". An empty key disables
// authentication. The root and health endpoints stay open.
func APIKeyAuth(apiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if apiKey == "" {
			return next
		}
		return func(c echo.Context) error {
			switch c.Request().URL.Path {
			case "/", "/health":
				return next(c)
			}
			if c.Request().Method == http.MethodOptions {
				return next(c)
			}
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			return next(c)
		}
	}
}
