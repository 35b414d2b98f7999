package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/yatube/backend/internal/apperr"
	"github.com/anonto42/yatube/backend/internal/cache"
	"github.com/anonto42/yatube/backend/internal/middleware"
	"github.com/anonto42/yatube/backend/internal/models"
	"github.com/anonto42/yatube/backend/internal/services"
)

const msgInvalidGroup = "Select a valid choice. That choice is not one of the available choices."

// PostHandler handles the post page and the new/edit forms.
type PostHandler struct {
	content        *services.ContentService
	pages          *cache.Pages
	maxUploadBytes int64
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(content *services.ContentService, pages *cache.Pages, maxUploadBytes int64) *PostHandler {
	return &PostHandler{content: content, pages: pages, maxUploadBytes: maxUploadBytes}
}

// NewPostForm describes the empty form.
func (h *PostHandler) NewPostForm(c echo.Context) error {
	groups, err := h.content.ListGroups(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{
		"is_edit": false,
		"fields":  []string{"text", "group", "image"},
		"groups":  groups,
	})
}

// CreatePost stores the submitted post and redirects to the home feed.
func (h *PostHandler) CreatePost(c echo.Context) error {
	var form models.PostForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	groupID, err := parseGroup(form.Group)
	if err != nil {
		return respondError(c, err)
	}
	image, err := h.readImage(c)
	if err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()
	_, err = h.content.CreatePost(ctx, middleware.CurrentUserID(c), services.NewPost{
		Text:    form.Text,
		GroupID: groupID,
		Image:   image,
	})
	if err != nil {
		return respondError(c, err)
	}

	h.pages.Invalidate(ctx, cache.RouteIndex, cache.RouteGroupPosts, cache.RouteFollowIndex)
	return c.Redirect(http.StatusFound, "/")
}

// PostView shows one post with its comments.
func (h *PostHandler) PostView(c echo.Context) error {
	postID, err := postIDParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	post, err := h.content.GetPost(ctx, c.Param("username"), postID)
	if err != nil {
		return respondError(c, err)
	}
	comments, err := h.content.ListComments(ctx, post.ID)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{
		"post":     post,
		"author":   post.Author.ToCompact(),
		"comments": comments,
	})
}

// EditForm describes the edit form filled with the post. Anyone but the
// author is sent back to the post page.
func (h *PostHandler) EditForm(c echo.Context) error {
	post, err := h.ownPost(c)
	if err != nil || post == nil {
		return err
	}
	groups, err := h.content.ListGroups(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{
		"is_edit": true,
		"fields":  []string{"text", "group", "image"},
		"post":    post,
		"groups":  groups,
	})
}

// EditPost applies the submitted form and redirects to the post page. The
// form always carries every field, so an empty group detaches the post.
func (h *PostHandler) EditPost(c echo.Context) error {
	post, err := h.ownPost(c)
	if err != nil || post == nil {
		return err
	}

	var form models.PostForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	groupID, err := parseGroup(form.Group)
	if err != nil {
		return respondError(c, err)
	}
	image, err := h.readImage(c)
	if err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()
	_, err = h.content.UpdatePost(ctx, post.ID, middleware.CurrentUserID(c), services.PostUpdate{
		Text:       &form.Text,
		GroupID:    groupID,
		ClearGroup: groupID == nil,
		Image:      image,
	})
	target := postURL(post.Author.Username, post.ID)
	if errors.Is(err, apperr.ErrPermission) {
		return c.Redirect(http.StatusFound, target)
	}
	if err != nil {
		return respondError(c, err)
	}

	h.pages.Invalidate(ctx, cache.RouteIndex, cache.RouteGroupPosts, cache.RoutePost, cache.RouteFollowIndex)
	return c.Redirect(http.StatusFound, target)
}

// ownPost loads the post named in the path. When the current user is not
// its author the redirect has already been written and the post is nil.
func (h *PostHandler) ownPost(c echo.Context) (*models.Post, error) {
	postID, err := postIDParam(c)
	if err != nil {
		return nil, err
	}
	post, err := h.content.GetPost(c.Request().Context(), c.Param("username"), postID)
	if err != nil {
		return nil, respondError(c, err)
	}
	if post.AuthorID != middleware.CurrentUserID(c) {
		return nil, c.Redirect(http.StatusFound, postURL(post.Author.Username, post.ID))
	}
	return post, nil
}

// readImage returns the uploaded image, or nil when the form has none.
func (h *PostHandler) readImage(c echo.Context) (*services.ImageUpload, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid upload")
	}
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		return nil, apperr.Invalid("image", fmt.Sprintf("Ensure the file is at most %d bytes.", h.maxUploadBytes))
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &services.ImageUpload{Filename: fh.Filename, Data: data}, nil
}

// parseGroup reads the group select. Empty means no group.
func parseGroup(raw string) (*uint, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, apperr.Invalid("group", msgInvalidGroup)
	}
	groupID := uint(id)
	return &groupID, nil
}
