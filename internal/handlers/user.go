package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/yatube/backend/internal/cache"
	"github.com/anonto42/yatube/backend/internal/middleware"
	"github.com/anonto42/yatube/backend/internal/repositories"
	"github.com/anonto42/yatube/backend/internal/services"
)

// UserHandler handles the current user's own account.
type UserHandler struct {
	userRepository repositories.UserRepository
	content        *services.ContentService
	pages          *cache.Pages
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository, content *services.ContentService, pages *cache.Pages) *UserHandler {
	return &UserHandler{userRepository: userRepo, content: content, pages: pages}
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	user, err := h.userRepository.GetUserByID(c.Request().Context(), middleware.CurrentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"user": user})
}

// DeleteProfile deletes the authenticated user with their posts, the
// comments on them, their own comments and their follow edges.
func (h *UserHandler) DeleteProfile(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.content.DeleteUser(ctx, middleware.CurrentUserID(c)); err != nil {
		return respondError(c, err)
	}

	h.pages.Invalidate(ctx, cache.RouteIndex, cache.RouteGroupPosts, cache.RoutePost, cache.RouteFollowIndex)
	c.SetCookie(&http.Cookie{Name: middleware.TokenCookie, Value: "", Path: "/", MaxAge: -1})
	return c.NoContent(http.StatusNoContent)
}
