package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"

	"github.com/anonto42/yatube/backend/internal/apperr"
	"github.com/anonto42/yatube/backend/internal/models"
	"github.com/anonto42/yatube/backend/pkg/log"
)

// FirebaseTokenHeader carries a Firebase ID token for clients that skip the
// exchange for a local JWT.
const FirebaseTokenHeader = "X-Firebase-Token"

// TokenVerifier checks Firebase ID tokens. *auth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// UserLookup finds the local account linked to a Firebase UID.
type UserLookup interface {
	GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error)
}

// FirebaseAuthMiddleware identifies the current user from a Firebase ID
// token when no earlier middleware has. The token must belong to an account
// that already went through /auth/firebase-login/.
func FirebaseAuthMiddleware(verifier TokenVerifier, users UserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			idToken := c.Request().Header.Get(FirebaseTokenHeader)
			if idToken == "" || CurrentUserID(c) != 0 {
				return next(c)
			}

			ctx := c.Request().Context()
			// Verify the ID token
			token, err := verifier.VerifyIDToken(ctx, idToken)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, fmt.Sprintf("Invalid or expired ID token: %v", err))
			}

			user, err := users.GetUserByFirebaseUID(ctx, token.UID)
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					return echo.NewHTTPError(http.StatusUnauthorized, "No account is linked to this Firebase user")
				}
				return err
			}

			// Store the Firebase UID in the context for later use
			c.Set("firebaseUID", token.UID)
			c.Set(log.FieldUserID, user.ID)

			return next(c)
		}
	}
}
