package handler

import (
	"log/slog"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sumire/timeledger/internal/auth"
	"github.com/sumire/timeledger/internal/domain"
)

const contextKeyUser = "auth_user"

// RequestLogger logs each HTTP request with structured fields.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			slog.Info("http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
			)

			return err
		}
	}
}

// TokenAuth resolves the Bearer token to a user through the auth
// service and injects it into the echo context. A missing, revoked, or
// expired token ends the request with ErrUnauthorized.
func TokenAuth(svc *auth.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return domain.ErrUnauthorized
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				return domain.ErrUnauthorized
			}

			user, err := svc.ReadUserByToken(c.Request().Context(), parts[1])
			if err != nil {
				return domain.ErrUnauthorized
			}

			c.Set(contextKeyUser, user)
			return next(c)
		}
	}
}

// GetUser extracts the authenticated user from echo context.
func GetUser(c echo.Context) (*domain.User, bool) {
	user, ok := c.Get(contextKeyUser).(*domain.User)
	return user, ok
}
