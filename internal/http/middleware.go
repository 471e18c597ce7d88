package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/campus-booking/internal/application"
	"github.com/example/campus-booking/internal/logging"
)

// TokenValidator resolves a bearer token into a principal.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (application.Principal, error)
}

// RequestLogger attaches a per-request logger to the request context and logs
// start/completion with duration.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
			)

			ctx := logging.ContextWithLogger(c.Request().Context(), logger)
			c.SetRequest(c.Request().WithContext(ctx))

			start := time.Now()
			logger.InfoContext(ctx, "request started")
			err := next(c)
			logger.InfoContext(ctx, "request completed",
				"status", c.Response().Status,
				"duration", time.Since(start),
			)
			return err
		}
	}
}

// RequireAuth validates the Authorization bearer token and stores the
// resolved principal on the context.
func RequireAuth(validator TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request())
			if token == "" {
				return c.JSON(http.StatusUnauthorized, errorResponse{
					ErrorCode: "missing_token",
					Message:   "an Authorization bearer token is required",
				})
			}

			principal, err := validator.ValidateToken(c.Request().Context(), token)
			if err != nil {
				code, message := "invalid_token", "the provided token is invalid"
				if errors.Is(err, application.ErrTokenExpired) {
					code, message = "token_expired", "the provided token has expired"
				}
				return c.JSON(http.StatusUnauthorized, errorResponse{ErrorCode: code, Message: message})
			}

			setPrincipal(c, principal)
			return next(c)
		}
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
