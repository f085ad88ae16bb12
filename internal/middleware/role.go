package middleware

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cane-truck-registry/internal/model"
    "github.com/iliyamo/cane-truck-registry/internal/service"
)

// RequireRole rejects requests whose authenticated user holds none of
// roles with 403. It must run after Authenticate; a request without a
// bound user gets 401.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            err := service.RequireRole(CurrentUser(c), roles...)
            switch {
            case err == nil:
                return next(c)
            case errors.Is(err, service.ErrMissingCredential):
                return deny(c, http.StatusUnauthorized, "authentication required")
            }
            return deny(c, http.StatusForbidden, "insufficient privilege")
        }
    }
}
