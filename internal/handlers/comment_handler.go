package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/yatube/backend/internal/cache"
	"github.com/anonto42/yatube/backend/internal/middleware"
	"github.com/anonto42/yatube/backend/internal/models"
	"github.com/anonto42/yatube/backend/internal/services"
)

// CommentHandler handles comment-related HTTP requests
type CommentHandler struct {
	content *services.ContentService
	pages   *cache.Pages
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(content *services.ContentService, pages *cache.Pages) *CommentHandler {
	return &CommentHandler{content: content, pages: pages}
}

// AddComment posts a comment as the current user and returns to the post.
// A GET only redirects.
func (h *CommentHandler) AddComment(c echo.Context) error {
	postID, err := postIDParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	post, err := h.content.GetPost(ctx, c.Param("username"), postID)
	if err != nil {
		return respondError(c, err)
	}
	target := postURL(post.Author.Username, post.ID)
	if c.Request().Method != http.MethodPost {
		return c.Redirect(http.StatusFound, target)
	}

	var form models.CommentForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&form); err != nil {
		return respondError(c, err)
	}

	if _, err := h.content.CreateComment(ctx, post.ID, middleware.CurrentUserID(c), form.Text); err != nil {
		return respondError(c, err)
	}

	h.pages.Invalidate(ctx, cache.RoutePost, cache.RouteIndex, cache.RouteGroupPosts, cache.RouteFollowIndex)
	return c.Redirect(http.StatusFound, target)
}
