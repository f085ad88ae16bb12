package middleware // middleware holds the reusable HTTP middleware of the API

import (
    "context"
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/cane-truck-registry/internal/model"
    "github.com/iliyamo/cane-truck-registry/internal/service"
)

// Authenticator resolves a raw bearer token to a live user.
type Authenticator interface {
    Authenticate(ctx context.Context, raw string) (*model.User, error)
}

// deny writes the standard failure envelope.
func deny(c echo.Context, status int, msg string) error {
    return c.JSON(status, echo.Map{"success": false, "message": msg})
}

// bearer extracts the token from "Authorization: Bearer <token>". The
// scheme is matched case-insensitively.
func bearer(c echo.Context) string {
    h := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
    if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
        return ""
    }
    return strings.TrimSpace(h[7:])
}

// Authenticate verifies the bearer token on every request of the group
// and binds the resolved user with SetUser. Missing, invalid or expired
// tokens and unknown or disabled users all get 401.
func Authenticate(auth Authenticator, log logrus.FieldLogger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            u, err := auth.Authenticate(c.Request().Context(), bearer(c))
            switch {
            case err == nil:
                SetUser(c, u)
                return next(c)
            case errors.Is(err, service.ErrMissingCredential):
                return deny(c, http.StatusUnauthorized, "missing bearer token")
            case errors.Is(err, service.ErrInvalidCredential):
                return deny(c, http.StatusUnauthorized, "invalid or expired token")
            case errors.Is(err, service.ErrUnknownOrInactiveUser):
                return deny(c, http.StatusUnauthorized, "user not found or disabled")
            }
            log.WithError(err).WithField("path", c.Path()).Error("auth: resolve user failed")
            return deny(c, http.StatusInternalServerError, "internal server error")
        }
    }
}

// OptionalAuthenticate is Authenticate for public routes: requests
// without an Authorization header pass through anonymously, while a
// header that is present must still be valid.
func OptionalAuthenticate(auth Authenticator, log logrus.FieldLogger) echo.MiddlewareFunc {
    strict := Authenticate(auth, log)
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        checked := strict(next)
        return func(c echo.Context) error {
            if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
                return next(c)
            }
            return checked(c)
        }
    }
}
