package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// HealthCheck reports liveness and whether the database answers.
func HealthCheck(db *gorm.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		status, code := "healthy", http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request().Context()) != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		return c.JSON(code, map[string]string{
			"status":  status,
			"service": "yatube",
		})
	}
}
