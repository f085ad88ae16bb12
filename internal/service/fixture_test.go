package service_test

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/service"
	"github.com/iliyamo/cane-truck-registry/internal/service/servicetest"
	"github.com/iliyamo/cane-truck-registry/internal/utils"
)

const (
	testSecret   = "test-secret-0123456789"
	testPassword = "s3cret!"
)

// fixture is a small yard: one admin, two military users at gate G, and
// one active contractor C, factory F and gate G.
type fixture struct {
	store  *servicetest.Store
	events *servicetest.Publisher
	cache  *servicetest.Cache
	log    *logrus.Logger
	hook   *test.Hook
	now    time.Time

	admin, soldier, other *model.User
	contractor            *model.Reference
	factory               *model.Reference
	gate                  *model.Reference
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, hook := test.NewNullLogger()
	f := &fixture{
		store:  servicetest.NewStore(),
		events: &servicetest.Publisher{},
		cache:  &servicetest.Cache{},
		log:    log,
		hook:   hook,
		now:    time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
	}
	hash, err := utils.HashPassword(testPassword, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	f.contractor = f.store.AddReference(model.KindContractor, "C", true)
	f.factory = f.store.AddReference(model.KindFactory, "F", true)
	f.gate = f.store.AddReference(model.KindGate, "G", true)
	gid := f.gate.ID

	f.admin = f.store.AddUser(model.User{Email: "admin@yard.test", Name: "Admin", Role: model.RoleAdmin, IsActive: true, PasswordHash: hash})
	f.soldier = f.store.AddUser(model.User{Email: "m1@yard.test", Name: "Soldier One", Role: model.RoleMilitary, GateID: &gid, IsActive: true, PasswordHash: hash})
	f.other = f.store.AddUser(model.User{Email: "m2@yard.test", Name: "Soldier Two", Role: model.RoleMilitary, GateID: &gid, IsActive: true, PasswordHash: hash})
	return f
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) ledger() *service.TruckLedger {
	l := service.NewTruckLedger(f.store.Trucks(), f.store.ReferenceMap(), f.store.Stats(), f.events, service.DefaultLedgerPolicy, f.log)
	l.Now = f.clock
	l.Cache = f.cache
	return l
}

func (f *fixture) registry(kind model.ReferenceKind) *service.ReferenceRegistry {
	return service.NewReferenceRegistry(f.store.References(kind), f.store.Stats(), f.cache, f.log)
}

func (f *fixture) reports() *service.Reports {
	r := service.NewReports(f.store.Stats(), f.store.ReferenceMap(), f.log)
	r.Now = f.clock
	r.Cache = f.cache
	return r
}

func (f *fixture) registerInput(plate string) service.RegisterInput {
	return service.RegisterInput{
		PlateNumber:       plate,
		ContractorID:      f.contractor.ID,
		FactoryID:         f.factory.ID,
		GateID:            f.gate.ID,
		FactoryCardNumber: "5501",
		DeviceCardNumber:  "9902",
	}
}

func strPtr(s string) *string { return &s }
func idPtr(v uint64) *uint64  { return &v }
func boolPtr(b bool) *bool    { return &b }
