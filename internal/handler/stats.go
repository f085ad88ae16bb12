package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cane-truck-registry/internal/middleware"
	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/service"
)

// StatsHandler serves /api/stats and the counter rebuild.
type StatsHandler struct {
	Reports *service.Reports
	Log     logrus.FieldLogger
}

func NewStatsHandler(r *service.Reports, log logrus.FieldLogger) *StatsHandler {
	return &StatsHandler{Reports: r, Log: log}
}

type reportResp struct {
	Period       string            `json:"period"`
	Since        time.Time         `json:"since"`
	TotalTrucks  int64             `json:"totalTrucks"`
	PeriodTrucks int64             `json:"periodTrucks"`
	Entity       *referenceView    `json:"entity,omitempty"`
	ByContractor []model.Bucket    `json:"byContractor,omitempty"`
	ByFactory    []model.Bucket    `json:"byFactory,omitempty"`
	ByGate       []model.Bucket    `json:"byGate,omitempty"`
	Daily        []model.DayBucket `json:"daily"`
}

func (r *reportResp) fill(byKind map[model.ReferenceKind][]model.Bucket) {
	r.ByContractor = byKind[model.KindContractor]
	r.ByFactory = byKind[model.KindFactory]
	r.ByGate = byKind[model.KindGate]
}

// Dashboard handles GET /api/stats/dashboard?period=day|week|month.
func (h *StatsHandler) Dashboard(c echo.Context) error {
	d, err := h.Reports.Dashboard(c.Request().Context(), middleware.CurrentUser(c), c.QueryParam("period"))
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	resp := reportResp{Period: d.Period, Since: d.Since, TotalTrucks: d.TotalTrucks, PeriodTrucks: d.PeriodTrucks, Daily: d.Daily}
	resp.fill(d.ByKind)
	return ok(c, http.StatusOK, "", resp)
}

// Entity returns the handler for GET /api/stats/<kind>/:id.
func (h *StatsHandler) Entity(kind model.ReferenceKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return respondErr(c, h.Log, err)
		}
		rep, err := h.Reports.ForEntity(c.Request().Context(), middleware.CurrentUser(c), kind, id, c.QueryParam("period"))
		if err != nil {
			return respondErr(c, h.Log, err)
		}
		entity := newReferenceView(rep.Entity)
		resp := reportResp{
			Period:       rep.Period,
			Since:        rep.Since,
			TotalTrucks:  rep.TotalTrucks,
			PeriodTrucks: rep.PeriodTrucks,
			Entity:       &entity,
			Daily:        rep.Daily,
		}
		resp.fill(rep.ByKind)
		return ok(c, http.StatusOK, "", resp)
	}
}

// Reconcile handles POST /api/admin/reconcile-counters.
func (h *StatsHandler) Reconcile(c echo.Context) error {
	if err := h.Reports.RebuildCounters(c.Request().Context(), middleware.CurrentUser(c)); err != nil {
		return respondErr(c, h.Log, err)
	}
	return ok(c, http.StatusOK, "counters rebuilt", nil)
}
