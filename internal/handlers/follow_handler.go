package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/yatube/backend/internal/cache"
	"github.com/anonto42/yatube/backend/internal/middleware"
	"github.com/anonto42/yatube/backend/internal/services"
)

// FollowHandler handles follow/unfollow HTTP requests
type FollowHandler struct {
	follows *services.FollowService
	pages   *cache.Pages
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(follows *services.FollowService, pages *cache.Pages) *FollowHandler {
	return &FollowHandler{follows: follows, pages: pages}
}

// ProfileFollow subscribes the current user to the author and returns to the
// author's profile. Following oneself or following twice changes nothing.
func (h *FollowHandler) ProfileFollow(c echo.Context) error {
	ctx := c.Request().Context()
	author, err := h.follows.Follow(ctx, middleware.CurrentUserID(c), c.Param("username"))
	if err != nil {
		return respondError(c, err)
	}
	h.pages.Invalidate(ctx, cache.RouteFollowIndex)
	return c.Redirect(http.StatusFound, profileURL(author.Username))
}

// ProfileUnfollow removes the subscription; a missing one is a 404.
func (h *FollowHandler) ProfileUnfollow(c echo.Context) error {
	ctx := c.Request().Context()
	author, err := h.follows.Unfollow(ctx, middleware.CurrentUserID(c), c.Param("username"))
	if err != nil {
		return respondError(c, err)
	}
	h.pages.Invalidate(ctx, cache.RouteFollowIndex)
	return c.Redirect(http.StatusFound, profileURL(author.Username))
}
