package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/repository"
)

// ReferenceRegistry manages one kind of reference entity. Names are
// unique per kind, active or not; the unique index in storage is the
// authority and the NameTaken lookup only produces a friendlier error
// earlier.
type ReferenceRegistry struct {
	Store ReferenceStore
	Stats StatsStore
	Cache ListCache
	Log   logrus.FieldLogger
}

func NewReferenceRegistry(store ReferenceStore, stats StatsStore, cache ListCache, log logrus.FieldLogger) *ReferenceRegistry {
	return &ReferenceRegistry{Store: store, Stats: stats, Cache: cache, Log: log}
}

// Kind returns the kind managed by r.
func (r *ReferenceRegistry) Kind() model.ReferenceKind { return r.Store.Kind() }

// ReferenceInput carries create and update fields. Nil pointers leave the
// stored value unchanged on update.
type ReferenceInput struct {
	Name     *string
	Phone    *string
	Address  *string
	Location *string
	IsActive *bool
}

// ReferenceStats is the live breakdown of the trucks pointing at one entity.
type ReferenceStats struct {
	Entity      *model.Reference
	TotalTrucks int64
	ByKind      map[model.ReferenceKind][]model.Bucket
	ByDay       []model.DayBucket
}

// List returns entities ordered by name. Only admins may include
// inactive ones.
func (r *ReferenceRegistry) List(ctx context.Context, includeInactive bool) ([]*model.Reference, error) {
	return r.Store.List(ctx, !includeInactive)
}

// Get returns one entity.
func (r *ReferenceRegistry) Get(ctx context.Context, id uint64) (*model.Reference, error) {
	e, err := r.Store.GetByID(ctx, id)
	if err != nil {
		return nil, r.notFound(err)
	}
	return e, nil
}

// Create validates in and persists a new active entity with a zero counter.
func (r *ReferenceRegistry) Create(ctx context.Context, actor *model.User, in ReferenceInput) (*model.Reference, error) {
	if err := Authorize(actor, model.CapManageReferences); err != nil {
		return nil, err
	}
	e := &model.Reference{Kind: r.Kind(), IsActive: true}
	if in.Name == nil {
		empty := ""
		in.Name = &empty
	}
	if err := r.apply(e, in); err != nil {
		return nil, err
	}
	if err := r.checkName(ctx, e.Name, 0); err != nil {
		return nil, err
	}
	if err := r.Store.Create(ctx, e); err != nil {
		return nil, r.writeErr(err)
	}
	r.purge(ctx)
	return e, nil
}

// Update applies in to entity id. Renames re-check uniqueness against
// every other entity of the kind.
func (r *ReferenceRegistry) Update(ctx context.Context, actor *model.User, id uint64, in ReferenceInput) (*model.Reference, error) {
	if err := Authorize(actor, model.CapManageReferences); err != nil {
		return nil, err
	}
	e, err := r.Store.GetByID(ctx, id)
	if err != nil {
		return nil, r.notFound(err)
	}
	if err := r.apply(e, in); err != nil {
		return nil, err
	}
	if in.Name != nil {
		if err := r.checkName(ctx, e.Name, e.ID); err != nil {
			return nil, err
		}
	}
	if err := r.Store.Update(ctx, e); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, r.writeErr(err)
	}
	r.purge(ctx)
	return e, nil
}

// Delete hard-deletes an entity that no truck references.
func (r *ReferenceRegistry) Delete(ctx context.Context, actor *model.User, id uint64) error {
	if err := Authorize(actor, model.CapManageReferences); err != nil {
		return err
	}
	if err := r.Store.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return ErrNotFound
		case errors.Is(err, repository.ErrReferenced):
			return ErrHasDependents
		}
		return err
	}
	r.purge(ctx)
	return nil
}

// StatsFor computes truck counts for entity id from the ledger, grouped
// by the two other reference kinds and by day (newest day first).
func (r *ReferenceRegistry) StatsFor(ctx context.Context, actor *model.User, id uint64) (*ReferenceStats, error) {
	if err := Authorize(actor, model.CapViewStats); err != nil {
		return nil, err
	}
	e, err := r.Store.GetByID(ctx, id)
	if err != nil {
		return nil, r.notFound(err)
	}
	scope := model.StatsScope{}.WithReference(r.Kind(), id)

	out := &ReferenceStats{Entity: e, ByKind: map[model.ReferenceKind][]model.Bucket{}}
	if out.TotalTrucks, err = r.Stats.Count(ctx, scope); err != nil {
		return nil, err
	}
	for _, other := range r.Kind().Others() {
		buckets, err := r.Stats.GroupByReference(ctx, other, scope)
		if err != nil {
			return nil, err
		}
		out.ByKind[other] = buckets
	}
	days, err := r.Stats.GroupByDay(ctx, scope)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(days)-1; i < j; i, j = i+1, j-1 {
		days[i], days[j] = days[j], days[i]
	}
	out.ByDay = days
	return out, nil
}

// apply copies the set fields of in onto e and validates the result.
func (r *ReferenceRegistry) apply(e *model.Reference, in ReferenceInput) error {
	ve := &ValidationError{}
	if in.Name != nil {
		e.Name = strings.TrimSpace(*in.Name)
	}
	if e.Name == "" {
		ve.Add("name", "name is required")
	}

	switch r.Kind() {
	case model.KindContractor:
		if in.Phone != nil {
			e.Phone = strings.TrimSpace(*in.Phone)
		}
		if in.Address != nil {
			e.Address = strings.TrimSpace(*in.Address)
		}
	case model.KindFactory:
		if in.Location != nil {
			e.Location = strings.TrimSpace(*in.Location)
		}
	}
	if in.IsActive != nil {
		e.IsActive = *in.IsActive
	}
	return ve.Err()
}

func (r *ReferenceRegistry) checkName(ctx context.Context, name string, excludeID uint64) error {
	taken, err := r.Store.NameTaken(ctx, name, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicateName
	}
	return nil
}

func (r *ReferenceRegistry) writeErr(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return ErrDuplicateName
	}
	return err
}

func (r *ReferenceRegistry) notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *ReferenceRegistry) purge(ctx context.Context) {
	purgeLists(ctx, r.Cache, r.Log, r.Kind())
}
