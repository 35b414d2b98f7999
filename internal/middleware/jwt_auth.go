package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/anonto42/yatube/backend/internal/apperr"
	"github.com/anonto42/yatube/backend/internal/models"
	"github.com/anonto42/yatube/backend/pkg/log"
)

// TokenCookie is the cookie the login handlers set; browsers send it back
// in place of an Authorization header.
const TokenCookie = "token"

// UserFinder loads the account a token was issued for.
type UserFinder interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
}

// JWTAuthMiddleware identifies the current user from a bearer token or the
// token cookie. Requests without a token pass through anonymous. An invalid
// bearer token is rejected; an invalid cookie is ignored so a stale cookie
// never locks a browser out of the login page. A token of a deleted account
// identifies nobody.
func JWTAuthMiddleware(secret string, users UserFinder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, fromHeader, err := extractToken(c)
			if err != nil {
				return err
			}
			if tokenString == "" {
				return next(c)
			}

			claims := &models.JwtCustomClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unexpected signing method")
				}
				return []byte(secret), nil
			})
			if err != nil {
				if !fromHeader {
					return next(c)
				}
				if errors.Is(err, jwt.ErrSignatureInvalid) {
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token signature")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}
			if !token.Valid || claims.UserID == 0 {
				if !fromHeader {
					return next(c)
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			if _, err := users.GetUserByID(c.Request().Context(), claims.UserID); err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					return next(c)
				}
				return err
			}

			// Store user claims in context
			c.Set("user", claims)
			c.Set(log.FieldUserID, claims.UserID)

			return next(c)
		}
	}
}

func extractToken(c echo.Context) (token string, fromHeader bool, err error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" {
		// Expecting "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return "", true, echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
		}
		return parts[1], true, nil
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil {
		return cookie.Value, false, nil
	}
	return "", false, nil
}

// CurrentUserID returns the authenticated user's id, or 0 for anonymous requests.
func CurrentUserID(c echo.Context) uint {
	id, _ := c.Get(log.FieldUserID).(uint)
	return id
}
