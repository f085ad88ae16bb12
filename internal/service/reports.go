package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/repository"
)

// Periods accepted by dashboard and per-entity reports.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// Reports serves the admin dashboards and the counter rebuild. All
// figures are computed from the ledger, never from the cached counters.
type Reports struct {
	Stats      StatsStore
	References References
	Cache      ListCache // optional; purged after a rebuild
	Log        logrus.FieldLogger
	Now        func() time.Time
}

func NewReports(stats StatsStore, refs References, log logrus.FieldLogger) *Reports {
	return &Reports{Stats: stats, References: refs, Log: log, Now: time.Now}
}

// Dashboard is the fleet-wide report for one period.
type Dashboard struct {
	Period       string
	Since        time.Time
	TotalTrucks  int64
	PeriodTrucks int64
	ByKind       map[model.ReferenceKind][]model.Bucket
	Daily        []model.DayBucket
}

// EntityReport is the report for one reference entity over a period.
type EntityReport struct {
	Entity       *model.Reference
	Period       string
	Since        time.Time
	TotalTrucks  int64
	PeriodTrucks int64
	ByKind       map[model.ReferenceKind][]model.Bucket
	Daily        []model.DayBucket
}

// PeriodStart returns the first instant covered by period relative to
// now: midnight today, seven days ago or the first of the month.
func PeriodStart(period string, now time.Time) (time.Time, error) {
	y, m, d := now.Date()
	switch strings.ToLower(period) {
	case PeriodDay:
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
	case PeriodWeek:
		return now.Add(-7 * 24 * time.Hour), nil
	case PeriodMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, now.Location()), nil
	}
	ve := &ValidationError{}
	ve.Add("period", "period must be day, week or month")
	return time.Time{}, ve
}

// Dashboard aggregates the whole ledger. An empty period means day.
func (r *Reports) Dashboard(ctx context.Context, actor *model.User, period string) (*Dashboard, error) {
	if err := Authorize(actor, model.CapViewStats); err != nil {
		return nil, err
	}
	if period == "" {
		period = PeriodDay
	}
	since, err := PeriodStart(period, r.Now().UTC())
	if err != nil {
		return nil, err
	}
	out := &Dashboard{Period: strings.ToLower(period), Since: since, ByKind: map[model.ReferenceKind][]model.Bucket{}}

	if out.TotalTrucks, err = r.Stats.Count(ctx, model.StatsScope{}); err != nil {
		return nil, err
	}
	scope := model.StatsScope{Since: &since}
	if out.PeriodTrucks, err = r.Stats.Count(ctx, scope); err != nil {
		return nil, err
	}
	for _, kind := range model.ReferenceKinds {
		buckets, err := r.Stats.GroupByReference(ctx, kind, scope)
		if err != nil {
			return nil, err
		}
		out.ByKind[kind] = buckets
	}
	if out.Daily, err = r.Stats.GroupByDay(ctx, scope); err != nil {
		return nil, err
	}
	return out, nil
}

// ForEntity aggregates the trucks of one reference entity. An empty
// period means month.
func (r *Reports) ForEntity(ctx context.Context, actor *model.User, kind model.ReferenceKind, id uint64, period string) (*EntityReport, error) {
	if err := Authorize(actor, model.CapViewStats); err != nil {
		return nil, err
	}
	store, ok := r.References[kind]
	if !ok {
		return nil, ErrNotFound
	}
	e, err := store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if period == "" {
		period = PeriodMonth
	}
	since, err := PeriodStart(period, r.Now().UTC())
	if err != nil {
		return nil, err
	}

	base := model.StatsScope{}.WithReference(kind, id)
	scope := base
	scope.Since = &since
	out := &EntityReport{Entity: e, Period: strings.ToLower(period), Since: since, ByKind: map[model.ReferenceKind][]model.Bucket{}}
	if out.TotalTrucks, err = r.Stats.Count(ctx, base); err != nil {
		return nil, err
	}
	if out.PeriodTrucks, err = r.Stats.Count(ctx, scope); err != nil {
		return nil, err
	}
	for _, other := range kind.Others() {
		buckets, err := r.Stats.GroupByReference(ctx, other, scope)
		if err != nil {
			return nil, err
		}
		out.ByKind[other] = buckets
	}
	if out.Daily, err = r.Stats.GroupByDay(ctx, scope); err != nil {
		return nil, err
	}
	return out, nil
}

// RebuildCounters recomputes every total_trucks counter from the ledger.
// A nil actor is the trusted background caller.
func (r *Reports) RebuildCounters(ctx context.Context, actor *model.User) error {
	if actor != nil {
		if err := Authorize(actor, model.CapManageReferences); err != nil {
			return err
		}
	}
	start := time.Now()
	if err := r.Stats.RebuildCounters(ctx); err != nil {
		return err
	}
	r.Log.WithField("took", time.Since(start).String()).Info("reference counters rebuilt")
	purgeLists(ctx, r.Cache, r.Log, model.ReferenceKinds...)
	return nil
}
