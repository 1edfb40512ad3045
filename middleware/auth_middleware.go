// middleware/auth_middleware.go
package middleware

import (
	"net/http"

	"github.com/HSouheill/partner_marketplace/logger"
	"github.com/HSouheill/partner_marketplace/models"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// RequireRole checks if the authenticated user has one of the allowed roles
func RequireRole(allowed ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := ExtractRole(c)
			if role == "" {
				return c.JSON(http.StatusUnauthorized, models.Response{
					Success: false,
					Message: "Authentication failed: role not found",
				})
			}
			for _, r := range allowed {
				if role == r {
					return next(c)
				}
			}
			logger.Log.WithFields(logrus.Fields{
				"path":    c.Request().URL.Path,
				"role":    role,
				"allowed": allowed,
			}).Warn("Access denied for role")
			return c.JSON(http.StatusForbidden, models.Response{
				Success: false,
				Message: "Access denied for your role",
			})
		}
	}
}
