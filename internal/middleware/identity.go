package middleware

// identity.go holds the helpers that move the authenticated user in and
// out of the Echo context. Authenticate stores it; handlers, RequireRole
// and the rate limiter read it back.

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cane-truck-registry/internal/model"
)

const userKey = "auth.user"

// SetUser binds u to the request.
func SetUser(c echo.Context, u *model.User) { c.Set(userKey, u) }

// CurrentUser returns the authenticated user or nil on public routes.
func CurrentUser(c echo.Context) *model.User {
    u, _ := c.Get(userKey).(*model.User)
    return u
}

// userID returns the caller's ID as a string, or "anon" when no user is
// authenticated.
func userID(c echo.Context) string {
    if u := CurrentUser(c); u != nil {
        return strconv.FormatUint(u.ID, 10)
    }
    return "anon"
}

// userRole returns the caller's role, or "anon".
func userRole(c echo.Context) string {
    if u := CurrentUser(c); u != nil {
        return string(u.Role)
    }
    return "anon"
}
