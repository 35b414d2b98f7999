package middleware

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
)

// LoginRequired redirects anonymous requests to the login page, passing the
// requested path on in ?next=.
func LoginRequired(loginURL string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if CurrentUserID(c) == 0 {
				target := loginURL + "?next=" + url.QueryEscape(c.Request().URL.RequestURI())
				return c.Redirect(http.StatusFound, target)
			}
			return next(c)
		}
	}
}
