package handler

import (
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/cane-truck-registry/internal/middleware"
    "github.com/iliyamo/cane-truck-registry/internal/model"
    "github.com/iliyamo/cane-truck-registry/internal/service"
)

// ReferenceHandler serves /api/contractors, /api/factories and /api/gates.
// One instance is registered per kind.
type ReferenceHandler struct {
    Registry *service.ReferenceRegistry
    Log      logrus.FieldLogger
}

func NewReferenceHandler(r *service.ReferenceRegistry, log logrus.FieldLogger) *ReferenceHandler {
    return &ReferenceHandler{Registry: r, Log: log}
}

type referenceFields struct {
    Phone    *string `json:"phone" validate:"omitempty,phone"`
    Address  *string `json:"address" validate:"omitempty,max=200"`
    Location *string `json:"location" validate:"omitempty,max=200"`
    IsActive *bool   `json:"isActive"`
}

func (r referenceFields) input(name *string) service.ReferenceInput {
    return service.ReferenceInput{Name: name, Phone: r.Phone, Address: r.Address, Location: r.Location, IsActive: r.IsActive}
}

type newReferenceReq struct {
    Name *string `json:"name" validate:"required,notblank,max=100"`
    referenceFields
}

type referenceReq struct {
    Name *string `json:"name" validate:"omitempty,notblank,max=100"`
    referenceFields
}

// List handles GET /api/<kind>. Public callers get active entities; an
// authenticated admin may add ?includeInactive=true.
func (h *ReferenceHandler) List(c echo.Context) error {
    includeInactive := false
    if u := middleware.CurrentUser(c); u != nil && u.Role.Can(model.CapManageReferences) {
        includeInactive, _ = strconv.ParseBool(c.QueryParam("includeInactive"))
    }
    items, err := h.Registry.List(c.Request().Context(), includeInactive)
    if err != nil {
        return respondErr(c, h.Log, err)
    }
    out := make([]referenceView, 0, len(items))
    for _, e := range items {
        out = append(out, newReferenceView(e))
    }
    return ok(c, http.StatusOK, "", out)
}

// Get handles GET /api/<kind>/:id.
func (h *ReferenceHandler) Get(c echo.Context) error {
    id, err := pathID(c)
    if err != nil {
        return respondErr(c, h.Log, err)
    }
    e, err := h.Registry.Get(c.Request().Context(), id)
    if err != nil {
        return respondErr(c, h.Log, err)
    }
    if !e.IsActive {
        if u := middleware.CurrentUser(c); u == nil || !u.Role.Can(model.CapManageReferences) {
            return respondErr(c, h.Log, service.ErrNotFound)
        }
    }
    return ok(c, http.StatusOK, "", newReferenceView(e))
}

// Create handles POST /api/<kind>.
func (h *ReferenceHandler) Create(c echo.Context) error {
    var req newReferenceReq
    if err := c.Bind(&req); err != nil {
        return badBody(c)
    }
    if err := c.Validate(&req); err != nil {
        return respondErr(c, h.Log, err)
    }
    e, err := h.Registry.Create(c.Request().Context(), middleware.CurrentUser(c), req.input(req.Name))
    if err != nil {
        return respondErr(c, h.Log, err)
    }
    return ok(c, http.StatusCreated, h.Registry.Kind().String()+" created", newReferenceView(e))
}

// Update handles PUT /api/<kind>/:id.
func (h *ReferenceHandler) Update(c echo.Context) error {
    id, err := pathID(c)
    if err != nil {
        return respondErr(c, h.Log, err)
    }
    var req referenceReq
    if err := c.Bind(&req); err != nil {
        return badBody(c)
    }
    if err := c.Validate(&req); err != nil {
        return respondErr(c, h.Log, err)
    }
    e, err := h.Registry.Update(c.Request().Context(), middleware.CurrentUser(c), id, req.input(req.Name))
    if err != nil {
        return respondErr(c, h.Log, err)
    }
    return ok(c, http.StatusOK, h.Registry.Kind().String()+" updated", newReferenceView(e))
}

// Delete handles DELETE /api/<kind>/:id.
func (h *ReferenceHandler) Delete(c echo.Context) error {
    id, err := pathID(c)
    if err != nil {
        return respondErr(c, h.Log, err)
    }
    if err := h.Registry.Delete(c.Request().Context(), middleware.CurrentUser(c), id); err != nil {
        return respondErr(c, h.Log, err)
    }
    return ok(c, http.StatusOK, h.Registry.Kind().String()+" deleted", nil)
}

type referenceStatsResp struct {
    Entity      referenceView                          `json:"entity"`
    TotalTrucks int64                                  `json:"totalTrucks"`
    ByKind      map[model.ReferenceKind][]model.Bucket `json:"byKind"`
    ByDay       []model.DayBucket                      `json:"byDay"`
}

// Stats handles GET /api/<kind>/:id/stats.
func (h *ReferenceHandler) Stats(c echo.Context) error {
    id, err := pathID(c)
    if err != nil {
        return respondErr(c, h.Log, err)
    }
    st, err := h.Registry.StatsFor(c.Request().Context(), middleware.CurrentUser(c), id)
    if err != nil {
        return respondErr(c, h.Log, err)
    }
    return ok(c, http.StatusOK, "", referenceStatsResp{
        Entity:      newReferenceView(st.Entity),
        TotalTrucks: st.TotalTrucks,
        ByKind:      st.ByKind,
        ByDay:       st.ByDay,
    })
}
