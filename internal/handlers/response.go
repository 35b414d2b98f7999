package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/yatube/backend/internal/apperr"
	"github.com/anonto42/yatube/backend/internal/services"
	"github.com/anonto42/yatube/backend/pkg/log"
)

// respondError maps service errors onto responses: validation problems are
// a 400 with the field map, unknown objects a 404, everything else a logged 500.
func respondError(c echo.Context, err error) error {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "errors": verr.Fields})
	case errors.Is(err, apperr.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	case errors.Is(err, apperr.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "Already exists")
	case errors.Is(err, apperr.ErrPermission):
		return echo.NewHTTPError(http.StatusForbidden, "Permission denied")
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	l := log.Ctx(c.Request().Context())
	l.Error().Err(err).Msg("request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
}

func success(c echo.Context, status int, data echo.Map) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

// paginated renders a feed page with the pagination block under "meta".
func paginated(c echo.Context, data echo.Map, page *services.Page) error {
	data["posts"] = page.Items
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    data,
		"meta": echo.Map{
			"currentPage":     page.Number,
			"totalPages":      page.TotalPages,
			"totalItems":      page.TotalCount,
			"itemsPerPage":    page.Size,
			"hasNextPage":     page.HasNext,
			"hasPreviousPage": page.HasPrevious,
		},
	})
}

// postIDParam reads :post_id. Anything that is not a positive integer names no post.
func postIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("post_id"), 10, 32)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusNotFound, "Not found")
	}
	return uint(id), nil
}

func postURL(username string, postID uint) string {
	return "/" + username + "/" + strconv.FormatUint(uint64(postID), 10) + "/"
}

func profileURL(username string) string {
	return "/" + username + "/"
}
