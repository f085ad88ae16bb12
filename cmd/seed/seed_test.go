package main

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/service"
	"github.com/iliyamo/cane-truck-registry/internal/service/servicetest"
	"github.com/iliyamo/cane-truck-registry/internal/utils"
)

const sample = `
contractors:
  - name: Northern Haulage
    phone: "+989121234567"
factories:
  - name: Haft Tappeh
    location: Shush
gates:
  - name: North Gate
users:
  - email: Admin@Yard.test
    password: change-me
    name: Yard Admin
    role: admin
  - email: guard@yard.test
    password: change-me
    name: Gate Guard
    role: military
    gate: North Gate
`

func TestSeedIsIdempotent(t *testing.T) {
	log, _ := test.NewNullLogger()
	store := servicetest.NewStore()
	f, err := parseSeed(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	first := &seeder{refs: store.ReferenceMap(), users: store.Users(), cost: bcrypt.MinCost, log: log}
	if err := first.apply(context.Background(), f); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if first.created != 5 || first.skipped != 0 {
		t.Fatalf("first run created=%d skipped=%d", first.created, first.skipped)
	}

	second := &seeder{refs: store.ReferenceMap(), users: store.Users(), cost: bcrypt.MinCost, log: log}
	if err := second.apply(context.Background(), f); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if second.created != 0 || second.skipped != 5 {
		t.Fatalf("second run created=%d skipped=%d", second.created, second.skipped)
	}

	guard, err := store.Users().GetByEmail(context.Background(), "guard@yard.test")
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	if guard.Role != model.RoleMilitary || guard.GateID == nil {
		t.Fatalf("guard: %+v", guard)
	}
	if !utils.VerifyPassword(guard.PasswordHash, "change-me") {
		t.Fatal("password not hashed with the seed value")
	}
	if _, err := store.Users().GetByEmail(context.Background(), "admin@yard.test"); err != nil {
		t.Fatalf("admin email not normalized: %v", err)
	}
}

func TestSeedRejectsUnknownGateAndFields(t *testing.T) {
	log, _ := test.NewNullLogger()
	store := servicetest.NewStore()
	f, err := parseSeed(strings.NewReader("users:\n  - email: a@b.test\n    password: secret1\n    name: A\n    role: military\n    gate: Nowhere\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s := &seeder{refs: store.ReferenceMap(), users: store.Users(), cost: bcrypt.MinCost, log: log}
	if err := s.apply(context.Background(), f); err == nil {
		t.Fatal("unknown gate accepted")
	}

	if _, err := parseSeed(strings.NewReader("trucks: []\n")); err == nil {
		t.Fatal("unknown top-level key accepted")
	}
}

func TestSeedValidatesEntries(t *testing.T) {
	cases := map[string]string{
		"short password": "users:\n  - email: a@b.test\n    password: x\n    name: A\n    role: admin\n",
		"bad email":      "users:\n  - email: nobody\n    password: secret1\n    name: A\n    role: admin\n",
		"bad phone":      "contractors:\n  - name: C\n    phone: call-me\n",
		"blank gate":     "gates:\n  - name: \"  \"\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parseSeed(strings.NewReader(in)); !service.IsValidation(err) {
				t.Fatalf("want validation error, got %v", err)
			}
		})
	}
}
