package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/yatube/backend/internal/middleware"
	"github.com/anonto42/yatube/backend/internal/services"
)

// FeedHandler serves the paginated post lists.
type FeedHandler struct {
	feeds   *services.FeedService
	content *services.ContentService
	follows *services.FollowService
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(feeds *services.FeedService, content *services.ContentService, follows *services.FollowService) *FeedHandler {
	return &FeedHandler{feeds: feeds, content: content, follows: follows}
}

// Index is the home feed with every post.
func (h *FeedHandler) Index(c echo.Context) error {
	page, err := h.feeds.BuildFeed(c.Request().Context(), services.HomeFeed(), services.ParsePage(c.QueryParam("page")))
	if err != nil {
		return respondError(c, err)
	}
	return paginated(c, echo.Map{}, page)
}

func (h *FeedHandler) GroupList(c echo.Context) error {
	groups, err := h.content.ListGroups(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"groups": groups})
}

func (h *FeedHandler) GroupPosts(c echo.Context) error {
	feed := services.GroupFeed(c.Param("slug"))
	page, err := h.feeds.BuildFeed(c.Request().Context(), feed, services.ParsePage(c.QueryParam("page")))
	if err != nil {
		return respondError(c, err)
	}
	return paginated(c, echo.Map{"group": page.Group}, page)
}

// Profile is an author's feed with their follow counters and whether the
// viewer follows them.
func (h *FeedHandler) Profile(c echo.Context) error {
	ctx := c.Request().Context()
	page, err := h.feeds.BuildFeed(ctx, services.ProfileFeed(c.Param("username")), services.ParsePage(c.QueryParam("page")))
	if err != nil {
		return respondError(c, err)
	}

	profile, err := h.follows.Profile(ctx, page.Author, middleware.CurrentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return paginated(c, echo.Map{
		"author":          page.Author.ToCompact(),
		"following":       profile.Following,
		"followers_count": profile.FollowersCount,
		"following_count": profile.FollowingCount,
	}, page)
}

// FollowIndex lists posts by the authors the current user follows.
func (h *FeedHandler) FollowIndex(c echo.Context) error {
	feed := services.FollowingFeed(middleware.CurrentUserID(c))
	page, err := h.feeds.BuildFeed(c.Request().Context(), feed, services.ParsePage(c.QueryParam("page")))
	if err != nil {
		return respondError(c, err)
	}
	return paginated(c, echo.Map{"is_empty": page.IsEmpty}, page)
}
