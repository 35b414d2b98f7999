package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/anonto42/yatube/backend/internal/apperr"
	"github.com/anonto42/yatube/backend/internal/middleware"
	"github.com/anonto42/yatube/backend/internal/models"
	"github.com/anonto42/yatube/backend/internal/repositories"
	"github.com/anonto42/yatube/backend/pkg/log"
)

var usernameUnsafe = regexp.MustCompile(`[^\w.@+-]`)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	userRepository repositories.UserRepository
	firebaseAuth   middleware.TokenVerifier
	jwtSecret      string
	tokenTTL       time.Duration
}

// NewAuthHandler creates a new AuthHandler. firebaseAuth may be nil, in
// which case Firebase login is unavailable.
func NewAuthHandler(userRepo repositories.UserRepository, firebaseAuth middleware.TokenVerifier, jwtSecret string, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		userRepository: userRepo,
		firebaseAuth:   firebaseAuth,
		jwtSecret:      jwtSecret,
		tokenTTL:       tokenTTL,
	}
}

// RegisterAuthRoutes registers authentication-related routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/signup/", h.Signup)
	g.GET("/login/", h.LoginForm)
	g.POST("/login/", h.Login)
	g.POST("/firebase-login/", h.FirebaseLogin)
}

// Signup handles local user registration with username, email and password
func (h *AuthHandler) Signup(c echo.Context) error {
	var req models.CreateLocalUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()
	verr := &apperr.ValidationError{}
	if _, err := h.userRepository.GetUserByUsername(ctx, req.Username); err == nil {
		verr.Add("username", "A user with that username already exists.")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return respondError(c, err)
	}
	if _, err := h.userRepository.GetUserByEmail(ctx, req.Email); err == nil {
		verr.Add("email", "A user with that email already exists.")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return respondError(c, err)
	}
	if len(verr.Fields) > 0 {
		return respondError(c, verr)
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to hash password")
	}

	user := &models.User{
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashedPassword),
	}
	if err := h.userRepository.CreateUser(ctx, user); err != nil {
		return respondError(c, err)
	}

	// Generate and return JWT for the newly registered user
	return h.issueToken(c, http.StatusCreated, user)
}

// LoginForm is where anonymous visitors of protected pages are sent.
func (h *AuthHandler) LoginForm(c echo.Context) error {
	return success(c, http.StatusOK, echo.Map{
		"fields": []string{"email", "password"},
		"next":   c.QueryParam("next"),
	})
}

// Login handles local user authentication with email and password
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	user, err := h.userRepository.GetUserByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
		}
		return respondError(c, err)
	}
	if user.Password == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}

	// Compare passwords
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}

	return h.issueToken(c, http.StatusOK, user)
}

// FirebaseLogin handles Firebase ID token verification and issues a local JWT.
// The Firebase account is linked to an existing user by email when Firebase
// has verified that email, or a new user is created.
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	if h.firebaseAuth == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Firebase authentication is not configured")
	}

	var req models.FirebaseLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()
	// Verify Firebase ID token
	token, err := h.firebaseAuth.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Firebase ID token")
	}

	firebaseUID := token.UID
	email, _ := token.Claims["email"].(string)
	name, _ := token.Claims["name"].(string)
	emailVerified, _ := token.Claims["email_verified"].(bool)

	user, err := h.userRepository.GetUserByFirebaseUID(ctx, firebaseUID)
	switch {
	case err == nil:
	case !errors.Is(err, apperr.ErrNotFound):
		return respondError(c, err)
	case email == "":
		return respondError(c, apperr.Invalid("idToken", "The Firebase account has no email address."))
	default:
		user, err = h.linkFirebaseUser(c, firebaseUID, email, name, emailVerified)
		if err != nil {
			return respondError(c, err)
		}
	}

	return h.issueToken(c, http.StatusOK, user)
}

func (h *AuthHandler) linkFirebaseUser(c echo.Context, firebaseUID, email, name string, emailVerified bool) (*models.User, error) {
	ctx := c.Request().Context()

	user, err := h.userRepository.GetUserByEmail(ctx, email)
	if err == nil {
		if !emailVerified {
			return nil, apperr.Invalid("idToken", "The Firebase account's email address is not verified.")
		}
		// User found by email, update their Firebase UID
		user.FirebaseUID = &firebaseUID
		if err := h.userRepository.UpdateUser(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	username, err := h.freeUsername(c, email)
	if err != nil {
		return nil, err
	}
	user = &models.User{
		Username:    username,
		Name:        name,
		Email:       email,
		FirebaseUID: &firebaseUID,
	}
	if err := h.userRepository.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	l := log.Ctx(ctx)
	l.Info().Uint(log.FieldUserID, user.ID).Msg("created user from firebase login")
	return user, nil
}

// freeUsername derives a username from the email's local part, adding a
// numeric suffix until it is unused.
func (h *AuthHandler) freeUsername(c echo.Context, email string) (string, error) {
	base := usernameUnsafe.ReplaceAllString(strings.SplitN(email, "@", 2)[0], "")
	if base == "" {
		base = "user"
	}
	candidate := base
	for i := 1; ; i++ {
		_, err := h.userRepository.GetUserByUsername(c.Request().Context(), candidate)
		if errors.Is(err, apperr.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = base + strconv.Itoa(i)
	}
}

// issueToken signs a JWT for the user, sets it as a cookie for browser
// clients and returns it in the body.
func (h *AuthHandler) issueToken(c echo.Context, status int, user *models.User) error {
	token, expires, err := h.generateJWT(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(status, echo.Map{"token": token, "user": user.ToCompact()})
}

// generateJWT generates a JWT token for a given user
func (h *AuthHandler) generateJWT(user *models.User) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(h.tokenTTL)
	claims := &models.JwtCustomClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return t, expires, nil
}
