package middleware

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/yatube/backend/internal/cache"
	"github.com/anonto42/yatube/backend/internal/services"
)

// HeaderCache reports HIT or MISS on cached routes.
const HeaderCache = "X-Cache"

// bodyRecorder copies everything the handler writes.
type bodyRecorder struct {
	http.ResponseWriter
	body *bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// CachePage serves GET requests of the route from the page cache and stores
// successful responses with the route's TTL. The key covers the route
// parameters and the page number, plus the user on per-user routes.
func CachePage(pages *cache.Pages, route string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			policy, ok := pages.Route(route)
			if !ok || c.Request().Method != http.MethodGet {
				return next(c)
			}

			params := make(map[string]string, len(c.ParamNames()))
			for i, name := range c.ParamNames() {
				params[name] = c.ParamValues()[i]
			}
			var userID uint
			if policy.PerUser {
				userID = CurrentUserID(c)
			}
			key := cache.Key(route, params, userID, services.ParsePage(c.QueryParam("page")))

			ctx := c.Request().Context()
			if body, hit := pages.Lookup(ctx, key); hit {
				c.Response().Header().Set(HeaderCache, "HIT")
				return c.JSONBlob(http.StatusOK, body)
			}

			res := c.Response()
			res.Header().Set(HeaderCache, "MISS")
			rec := &bodyRecorder{ResponseWriter: res.Writer, body: new(bytes.Buffer)}
			res.Writer = rec
			defer func() { res.Writer = rec.ResponseWriter }()

			if err := next(c); err != nil {
				return err
			}
			if res.Status == http.StatusOK {
				pages.Save(ctx, key, rec.body.Bytes(), policy.TTL)
			}
			return nil
		}
	}
}
