package handlers

import (
	"errors"
	"mime"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/yatube/backend/pkg/storage"
)

// MediaHandler streams stored post images.
type MediaHandler struct {
	media storage.Storage
}

func NewMediaHandler(media storage.Storage) *MediaHandler {
	return &MediaHandler{media: media}
}

func (h *MediaHandler) Serve(c echo.Context) error {
	key := path.Clean(c.Param("*"))
	if key == "." || key == "/" {
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	}

	rc, err := h.media.Read(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Not found")
		}
		return respondError(c, err)
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Stream(http.StatusOK, contentType, rc)
}
