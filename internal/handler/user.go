package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cane-truck-registry/internal/middleware"
	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/service"
)

// UserHandler serves the admin-only /api/users endpoints.
type UserHandler struct {
	Users *service.UserAdmin
	Log   logrus.FieldLogger
}

func NewUserHandler(u *service.UserAdmin, log logrus.FieldLogger) *UserHandler {
	return &UserHandler{Users: u, Log: log}
}

// newUserReq is the body of POST /api/users. The role itself is checked
// by the user admin, which also knows the gate rule.
type newUserReq struct {
	Email    *string     `json:"email" validate:"required,email,max=191"`
	Password *string     `json:"password" validate:"required,min=6,max=72"`
	Name     *string     `json:"name" validate:"required,notblank,max=100"`
	Role     *string     `json:"role"`
	GateID   *flexString `json:"gateId"`
	IsActive *bool       `json:"isActive"`
}

func (r newUserReq) input(ve *service.ValidationError) service.UserInput {
	return service.UserInput{
		Email:    r.Email,
		Password: r.Password,
		Name:     r.Name,
		Role:     r.Role,
		GateID:   flexID(ve, "gateId", r.GateID),
		IsActive: r.IsActive,
	}
}

// userReq is the body of PUT /api/users/:id. Passwords change through
// ChangePassword only, so a password here is ignored.
type userReq struct {
	Email    *string     `json:"email" validate:"omitempty,email,max=191"`
	Name     *string     `json:"name" validate:"omitempty,notblank,max=100"`
	Role     *string     `json:"role"`
	GateID   *flexString `json:"gateId"`
	IsActive *bool       `json:"isActive"`
}

func (r userReq) input(ve *service.ValidationError) service.UserInput {
	return service.UserInput{
		Email:    r.Email,
		Name:     r.Name,
		Role:     r.Role,
		GateID:   flexID(ve, "gateId", r.GateID),
		IsActive: r.IsActive,
	}
}

type passwordReq struct {
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// List handles GET /api/users.
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.Users.List(c.Request().Context(), middleware.CurrentUser(c))
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, newUserView(u))
	}
	return ok(c, http.StatusOK, "", out)
}

// Create handles POST /api/users.
func (h *UserHandler) Create(c echo.Context) error {
	var req newUserReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := c.Validate(&req); err != nil {
		return respondErr(c, h.Log, err)
	}
	ve := &service.ValidationError{}
	in := req.input(ve)
	if err := ve.Err(); err != nil {
		return respondErr(c, h.Log, err)
	}
	u, err := h.Users.Create(c.Request().Context(), middleware.CurrentUser(c), in)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	return ok(c, http.StatusCreated, "user created", newUserView(u))
}

// Update handles PUT /api/users/:id.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	var req userReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := c.Validate(&req); err != nil {
		return respondErr(c, h.Log, err)
	}
	ve := &service.ValidationError{}
	in := req.input(ve)
	if err := ve.Err(); err != nil {
		return respondErr(c, h.Log, err)
	}
	u, err := h.Users.Update(c.Request().Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	return ok(c, http.StatusOK, "user updated", newUserView(u))
}

// ChangePassword handles PUT /api/users/:id/password.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	var req passwordReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := c.Validate(&req); err != nil {
		return respondErr(c, h.Log, err)
	}
	if err := h.Users.ChangePassword(c.Request().Context(), middleware.CurrentUser(c), id, req.Password); err != nil {
		return respondErr(c, h.Log, err)
	}
	return ok(c, http.StatusOK, "password updated", nil)
}

// Delete handles DELETE /api/users/:id.
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	if err := h.Users.Delete(c.Request().Context(), middleware.CurrentUser(c), id); err != nil {
		return respondErr(c, h.Log, err)
	}
	return ok(c, http.StatusOK, "user deleted", nil)
}

type userStatsResp struct {
	User        userView          `json:"user"`
	TotalTrucks int64             `json:"totalTrucks"`
	ByFactory   []model.Bucket    `json:"byFactory"`
	ByDay       []model.DayBucket `json:"byDay"`
}

// Stats handles GET /api/users/:id/stats.
func (h *UserHandler) Stats(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	st, err := h.Users.StatsFor(c.Request().Context(), middleware.CurrentUser(c), id)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	return ok(c, http.StatusOK, "", userStatsResp{
		User:        newUserView(st.User),
		TotalTrucks: st.TotalTrucks,
		ByFactory:   st.ByFactory,
		ByDay:       st.ByDay,
	})
}
