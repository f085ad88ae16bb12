package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cane-truck-registry/internal/middleware"
	"github.com/iliyamo/cane-truck-registry/internal/service"
)

// AuthHandler serves login and the current-user endpoint.
type AuthHandler struct {
	Sessions *service.SessionIssuer
	Log      logrus.FieldLogger
}

func NewAuthHandler(s *service.SessionIssuer, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{Sessions: s, Log: log}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      userView  `json:"user"`
}

// Login: POST /api/auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	s, err := h.Sessions.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	h.Log.WithField("user_id", s.User.ID).Info("login")
	return ok(c, http.StatusOK, "login successful", loginResp{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		User:      newUserView(s.User),
	})
}

// Me: GET /api/auth/me.
func (h *AuthHandler) Me(c echo.Context) error {
	u := middleware.CurrentUser(c)
	if u == nil {
		return respondErr(c, h.Log, service.ErrMissingCredential)
	}
	return ok(c, http.StatusOK, "", newUserView(u))
}
