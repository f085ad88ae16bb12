// Package service holds the business rules: access control, sessions,
// the reference registry, the truck ledger, user administration and
// reporting. Storage is reached through the small interfaces below, which
// the MySQL repositories and the in-memory servicetest fakes implement.
package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/queue"
)

// UserStore is the identity store.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
	Create(ctx context.Context, u *model.User) error
	Update(ctx context.Context, u *model.User) error
	UpdatePassword(ctx context.Context, id uint64, hash string) error
	TouchLastLogin(ctx context.Context, id uint64, at time.Time) error
	Delete(ctx context.Context, id uint64) error
}

// ReferenceStore persists entities of one reference kind.
type ReferenceStore interface {
	Kind() model.ReferenceKind
	List(ctx context.Context, activeOnly bool) ([]*model.Reference, error)
	GetByID(ctx context.Context, id uint64) (*model.Reference, error)
	NameTaken(ctx context.Context, name string, excludeID uint64) (bool, error)
	Create(ctx context.Context, e *model.Reference) error
	Update(ctx context.Context, e *model.Reference) error
	Delete(ctx context.Context, id uint64) error
}

// TruckStore persists the ledger. Create and Update keep the reference
// counters in step with the rows they write.
type TruckStore interface {
	Create(ctx context.Context, t *model.Truck) error
	GetByID(ctx context.Context, id uint64) (*model.Truck, error)
	PlateTaken(ctx context.Context, plate int64, excludeID uint64) (bool, error)
	Update(ctx context.Context, prev, next *model.Truck) error
	UpdateStatus(ctx context.Context, id uint64, from, to model.TruckStatus, deliveredAt *time.Time) error
	Search(ctx context.Context, f model.TruckFilter) ([]*model.Truck, int, error)
}

// StatsStore aggregates the ledger.
type StatsStore interface {
	Count(ctx context.Context, s model.StatsScope) (int64, error)
	GroupByReference(ctx context.Context, kind model.ReferenceKind, s model.StatsScope) ([]model.Bucket, error)
	GroupByDay(ctx context.Context, s model.StatsScope) ([]model.DayBucket, error)
	RebuildCounters(ctx context.Context) error
}

// EventPublisher delivers ledger events. Failures never fail the write
// that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.TruckEvent) error
}

// ListCache drops cached public lists of a reference kind after writes.
// Truck writes purge too, since the lists carry truck counters.
type ListCache interface {
	Purge(ctx context.Context, kind model.ReferenceKind) error
}

func purgeLists(ctx context.Context, cache ListCache, log logrus.FieldLogger, kinds ...model.ReferenceKind) {
	if cache == nil {
		return
	}
	for _, k := range kinds {
		if err := cache.Purge(ctx, k); err != nil {
			log.WithError(err).WithField("kind", k).Warn("cache purge failed")
		}
	}
}

// References groups the three reference stores by kind.
type References map[model.ReferenceKind]ReferenceStore
