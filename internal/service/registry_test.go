package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/service"
)

func TestRegistryCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.registry(model.KindContractor)

	e, err := r.Create(ctx, f.admin, service.ReferenceInput{Name: strPtr("  Haft Tappeh "), Phone: strPtr("+989121234567"), Address: strPtr("Road 4")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.ID == 0 || e.Name != "Haft Tappeh" || !e.IsActive || e.TotalTrucks != 0 || e.Phone != "+989121234567" {
		t.Fatalf("created: %+v", e)
	}
	if len(f.cache.Purged) != 1 || f.cache.Purged[0] != model.KindContractor {
		t.Fatalf("purged: %v", f.cache.Purged)
	}

	cases := []struct {
		name  string
		actor *model.User
		in    service.ReferenceInput
		check func(error) bool
	}{
		{"military", f.soldier, service.ReferenceInput{Name: strPtr("X")}, func(err error) bool { return errors.Is(err, service.ErrInsufficientPrivilege) }},
		{"missing name", f.admin, service.ReferenceInput{}, service.IsValidation},
		{"blank name", f.admin, service.ReferenceInput{Name: strPtr("   ")}, service.IsValidation},
		{"duplicate", f.admin, service.ReferenceInput{Name: strPtr("C")}, func(err error) bool { return errors.Is(err, service.ErrDuplicateName) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := r.Create(ctx, tc.actor, tc.in); err == nil || !tc.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}

	// Uniqueness is per kind and case-sensitive.
	if _, err := f.registry(model.KindFactory).Create(ctx, f.admin, service.ReferenceInput{Name: strPtr("C")}); err != nil {
		t.Fatalf("same name in another kind: %v", err)
	}
	if _, err := r.Create(ctx, f.admin, service.ReferenceInput{Name: strPtr("c")}); err != nil {
		t.Fatalf("different case: %v", err)
	}
}

func TestRegistryUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.registry(model.KindFactory)
	other, _ := r.Create(ctx, f.admin, service.ReferenceInput{Name: strPtr("F2")})
	if _, err := f.ledger().Register(ctx, f.soldier, f.registerInput("9")); err != nil {
		t.Fatal(err)
	}

	e, err := r.Update(ctx, f.admin, f.factory.ID, service.ReferenceInput{Location: strPtr("North"), IsActive: boolPtr(false)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if e.Location != "North" || e.IsActive || e.Name != "F" {
		t.Fatalf("updated: %+v", e)
	}
	if got := f.store.Reference(model.KindFactory, f.factory.ID); got.TotalTrucks != 1 {
		t.Fatalf("update must not touch the counter: %d", got.TotalTrucks)
	}

	if _, err := r.Update(ctx, f.admin, f.factory.ID, service.ReferenceInput{Name: strPtr("F2")}); !errors.Is(err, service.ErrDuplicateName) {
		t.Fatalf("rename onto sibling: %v", err)
	}
	if _, err := r.Update(ctx, f.admin, other.ID, service.ReferenceInput{Name: strPtr("F2")}); err != nil {
		t.Fatalf("rename to own name: %v", err)
	}
	if _, err := r.Update(ctx, f.admin, 999, service.ReferenceInput{Name: strPtr("Z")}); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}

	active, _ := r.List(ctx, false)
	all, _ := r.List(ctx, true)
	if len(active) != 1 || len(all) != 2 || all[0].Name != "F" {
		t.Fatalf("list: active=%d all=%d", len(active), len(all))
	}
}

func TestRegistryDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	spare := f.store.AddReference(model.KindGate, "Spare", true)

	if err := f.registry(model.KindGate).Delete(ctx, f.admin, f.gate.ID); !errors.Is(err, service.ErrHasDependents) {
		t.Fatalf("gate with assigned users: %v", err)
	}
	if err := f.registry(model.KindGate).Delete(ctx, f.soldier, spare.ID); !errors.Is(err, service.ErrInsufficientPrivilege) {
		t.Fatalf("military delete: %v", err)
	}
	if err := f.registry(model.KindGate).Delete(ctx, f.admin, spare.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.registry(model.KindGate).Delete(ctx, f.admin, spare.ID); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	if err := f.registry(model.KindContractor).Delete(ctx, f.admin, f.contractor.ID); err != nil {
		t.Fatalf("unreferenced contractor: %v", err)
	}
}

func TestRegistryStatsFor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.ledger()
	f2 := f.store.AddReference(model.KindFactory, "F2", true)

	if _, err := l.Register(ctx, f.soldier, f.registerInput("1")); err != nil {
		t.Fatal(err)
	}
	f.now = f.now.Add(24 * time.Hour)
	in := f.registerInput("2")
	in.FactoryID = f2.ID
	if _, err := l.Register(ctx, f.soldier, in); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Register(ctx, f.other, f.registerInput("3")); err != nil {
		t.Fatal(err)
	}

	st, err := f.registry(model.KindContractor).StatsFor(ctx, f.admin, f.contractor.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalTrucks != 3 || st.Entity.TotalTrucks != 3 {
		t.Fatalf("totals: %d / %d", st.TotalTrucks, st.Entity.TotalTrucks)
	}
	factories := st.ByKind[model.KindFactory]
	if len(factories) != 2 || factories[0].Name != "F" || factories[0].Count != 2 {
		t.Fatalf("by factory: %+v", factories)
	}
	if _, ok := st.ByKind[model.KindContractor]; ok {
		t.Fatal("own kind must not be broken down")
	}
	if len(st.ByDay) != 2 || st.ByDay[0].Day != "2026-03-11" || st.ByDay[0].Count != 2 {
		t.Fatalf("by day, newest first: %+v", st.ByDay)
	}

	if _, err := f.registry(model.KindContractor).StatsFor(ctx, f.soldier, f.contractor.ID); !errors.Is(err, service.ErrInsufficientPrivilege) {
		t.Fatalf("military stats: %v", err)
	}
	if _, err := f.registry(model.KindContractor).StatsFor(ctx, f.admin, 999); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("missing entity: %v", err)
	}
}
