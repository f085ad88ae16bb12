package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cane-truck-registry/internal/middleware"
	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/service"
)

// TruckHandler serves /api/trucks.
type TruckHandler struct {
	Ledger *service.TruckLedger
	Log    logrus.FieldLogger
}

func NewTruckHandler(l *service.TruckLedger, log logrus.FieldLogger) *TruckHandler {
	return &TruckHandler{Ledger: l, Log: log}
}

// registerReq is the body of a registration. The gate may be left out;
// the ledger falls back to the guard's own gate.
type registerReq struct {
	PlateNumber       *flexString `json:"plateNumber" validate:"required"`
	ContractorID      *flexString `json:"contractorId" validate:"required"`
	FactoryID         *flexString `json:"factoryId" validate:"required"`
	GateID            *flexString `json:"gateId"`
	FactoryCardNumber *flexString `json:"factoryCardNumber" validate:"required"`
	DeviceCardNumber  *flexString `json:"deviceCardNumber" validate:"required"`
	Notes             *string     `json:"notes" validate:"omitempty,max=500"`
}

// truckReq is the body of an edit; every field is optional.
type truckReq struct {
	PlateNumber       *flexString `json:"plateNumber"`
	ContractorID      *flexString `json:"contractorId"`
	FactoryID         *flexString `json:"factoryId"`
	GateID            *flexString `json:"gateId"`
	FactoryCardNumber *flexString `json:"factoryCardNumber"`
	DeviceCardNumber  *flexString `json:"deviceCardNumber"`
	Notes             *string     `json:"notes" validate:"omitempty,max=500"`
}

func (h *TruckHandler) view(t *model.Truck) truckView {
	return newTruckView(t, h.Ledger.Now(), h.Ledger.Policy.RequireEditFlag)
}

func (h *TruckHandler) views(items []*model.Truck) []truckView {
	out := make([]truckView, 0, len(items))
	for _, t := range items {
		out = append(out, h.view(t))
	}
	return out
}

func deref(p *uint64) uint64 {
	if p == nil {
		return 0
	}
	return *p
}

func flexValue(f *flexString) string {
	if f == nil {
		return ""
	}
	return string(*f)
}

// Register handles POST /api/trucks/register-new-truck.
func (h *TruckHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := c.Validate(&req); err != nil {
		return respondErr(c, h.Log, err)
	}
	ve := &service.ValidationError{}
	in := service.RegisterInput{
		PlateNumber:       flexValue(req.PlateNumber),
		ContractorID:      deref(flexID(ve, "contractorId", req.ContractorID)),
		FactoryID:         deref(flexID(ve, "factoryId", req.FactoryID)),
		GateID:            deref(flexID(ve, "gateId", req.GateID)),
		FactoryCardNumber: flexValue(req.FactoryCardNumber),
		DeviceCardNumber:  flexValue(req.DeviceCardNumber),
	}
	if req.Notes != nil {
		in.Notes = *req.Notes
	}
	if err := ve.Err(); err != nil {
		return respondErr(c, h.Log, err)
	}
	t, err := h.Ledger.Register(c.Request().Context(), middleware.CurrentUser(c), in)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	return ok(c, http.StatusCreated, "truck registered", h.view(t))
}

// Get handles GET /api/trucks/:id.
func (h *TruckHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	t, err := h.Ledger.Get(c.Request().Context(), middleware.CurrentUser(c), id)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	return ok(c, http.StatusOK, "", h.view(t))
}

// Update handles PUT /api/trucks/:id.
func (h *TruckHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	var req truckReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := c.Validate(&req); err != nil {
		return respondErr(c, h.Log, err)
	}
	ve := &service.ValidationError{}
	in := service.EditInput{
		PlateNumber:       req.PlateNumber.ptr(),
		ContractorID:      flexID(ve, "contractorId", req.ContractorID),
		FactoryID:         flexID(ve, "factoryId", req.FactoryID),
		GateID:            flexID(ve, "gateId", req.GateID),
		FactoryCardNumber: req.FactoryCardNumber.ptr(),
		DeviceCardNumber:  req.DeviceCardNumber.ptr(),
		Notes:             req.Notes,
	}
	if err := ve.Err(); err != nil {
		return respondErr(c, h.Log, err)
	}
	t, err := h.Ledger.Edit(c.Request().Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	return ok(c, http.StatusOK, "truck updated", h.view(t))
}

// Transition handles PATCH /api/trucks/:id/status.
func (h *TruckHandler) Transition(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	t, err := h.Ledger.Transition(c.Request().Context(), middleware.CurrentUser(c), id, req.Status)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	return ok(c, http.StatusOK, "status updated", h.view(t))
}

// List handles GET /api/trucks (admin).
func (h *TruckHandler) List(c echo.Context) error {
	return h.list(c, false)
}

// MyTrucks handles GET /api/trucks/my-trucks.
func (h *TruckHandler) MyTrucks(c echo.Context) error {
	return h.list(c, true)
}

func (h *TruckHandler) list(c echo.Context, mine bool) error {
	q, err := parseListQuery(c)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	q.Mine = mine
	page, err := h.Ledger.List(c.Request().Context(), middleware.CurrentUser(c), q)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, envelope{
		Success: true,
		Data:    h.views(page.Items),
		Pagination: &pagination{
			Total:    page.Total,
			Page:     page.Page,
			PageSize: page.PageSize,
			Pages:    page.Pages,
		},
	})
}

type myStatsResp struct {
	TotalTrucks int64          `json:"totalTrucks"`
	Today       int64          `json:"today"`
	ByFactory   []model.Bucket `json:"byFactory"`
}

// MyStats handles GET /api/trucks/my-stats.
func (h *TruckHandler) MyStats(c echo.Context) error {
	st, err := h.Ledger.MyStats(c.Request().Context(), middleware.CurrentUser(c))
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	return ok(c, http.StatusOK, "", myStatsResp{TotalTrucks: st.TotalTrucks, Today: st.Today, ByFactory: st.ByFactory})
}

// parseListQuery reads the listing filters. The short names contractor
// and factory and the page size alias limit are accepted too.
func parseListQuery(c echo.Context) (service.ListQuery, error) {
	ve := &service.ValidationError{}
	q := service.ListQuery{
		Search: c.QueryParam("search"),
		Status: c.QueryParam("status"),
	}
	q.Page = queryInt(ve, c, "page")
	if q.PageSize = queryInt(ve, c, "pageSize"); q.PageSize == 0 {
		q.PageSize = queryInt(ve, c, "limit")
	}
	q.ContractorID = queryID(ve, c, "contractorId", "contractor")
	q.FactoryID = queryID(ve, c, "factoryId", "factory")
	q.GateID = queryID(ve, c, "gateId", "gate")
	q.From = queryDate(ve, c, "dateFrom", false)
	q.To = queryDate(ve, c, "dateTo", true)
	return q, ve.Err()
}

func queryInt(ve *service.ValidationError, c echo.Context, name string) int {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		ve.Add(name, name+" must be a non-negative integer")
		return 0
	}
	return n
}

func queryID(ve *service.ValidationError, c echo.Context, names ...string) uint64 {
	for _, name := range names {
		raw := strings.TrimSpace(c.QueryParam(name))
		if raw == "" {
			continue
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			ve.Add(name, name+" must be a positive integer")
			return 0
		}
		return id
	}
	return 0
}

// queryDate accepts RFC 3339 or YYYY-MM-DD. A bare date used as an upper
// bound covers the whole day.
func queryDate(ve *service.ValidationError, c echo.Context, name string, endOfDay bool) *time.Time {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		ve.Add(name, name+" must be YYYY-MM-DD or RFC 3339")
		return nil
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t
}
