package service_test

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/service"
	"github.com/iliyamo/cane-truck-registry/internal/utils"
)

func (f *fixture) users() *service.UserAdmin {
	return service.NewUserAdmin(f.store.Users(), f.store.References(model.KindGate), f.store.Stats(), bcrypt.MinCost, f.log)
}

func TestUserCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.users()

	u, err := a.Create(ctx, f.admin, service.UserInput{
		Email:    strPtr(" New.Guard@Yard.test "),
		Password: strPtr("guard-pass"),
		Name:     strPtr("New Guard"),
		GateID:   idPtr(f.gate.ID),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Email != "new.guard@yard.test" || u.Role != model.RoleMilitary || !u.IsActive || u.GateName != "G" {
		t.Fatalf("created: %+v", u)
	}
	stored := mustUser(t, f, u.ID)
	if !utils.VerifyPassword(stored.PasswordHash, "guard-pass") {
		t.Fatal("password not hashed with the given value")
	}

	admin, err := a.Create(ctx, f.admin, service.UserInput{
		Email: strPtr("boss@yard.test"), Password: strPtr("boss-pass"), Name: strPtr("Boss"),
		Role: strPtr("admin"), GateID: idPtr(f.gate.ID),
	})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if admin.GateID != nil {
		t.Fatalf("admins carry no gate: %v", *admin.GateID)
	}

	cases := []struct {
		name  string
		actor *model.User
		in    service.UserInput
		check func(error) bool
	}{
		{"military actor", f.soldier, service.UserInput{}, func(err error) bool { return errors.Is(err, service.ErrInsufficientPrivilege) }},
		{"empty form", f.admin, service.UserInput{}, service.IsValidation},
		{"bad role", f.admin, service.UserInput{Email: strPtr("a@yard.test"), Name: strPtr("A"), Password: strPtr("123456"), Role: strPtr("general")}, service.IsValidation},
		{"military without gate", f.admin, service.UserInput{Email: strPtr("a@yard.test"), Name: strPtr("A"), Password: strPtr("123456")}, service.IsValidation},
		{"unknown gate", f.admin, service.UserInput{Email: strPtr("a@yard.test"), Name: strPtr("A"), Password: strPtr("123456"), GateID: idPtr(999)}, func(err error) bool { return errors.Is(err, service.ErrReferenceNotFound) }},
		{"duplicate email", f.admin, service.UserInput{Email: strPtr("M1@yard.test"), Name: strPtr("A"), Password: strPtr("123456"), GateID: idPtr(f.gate.ID)}, func(err error) bool { return errors.Is(err, service.ErrDuplicateEmail) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := a.Create(ctx, tc.actor, tc.in); err == nil || !tc.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestUserUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.users()

	u, err := a.Update(ctx, f.admin, f.soldier.ID, service.UserInput{Name: strPtr("Sergeant One"), IsActive: boolPtr(false)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.Name != "Sergeant One" || u.IsActive {
		t.Fatalf("updated: %+v", u)
	}
	if !utils.VerifyPassword(mustUser(t, f, u.ID).PasswordHash, testPassword) {
		t.Fatal("update must keep the password")
	}

	if _, err := a.Update(ctx, f.admin, f.admin.ID, service.UserInput{Role: strPtr("military"), GateID: idPtr(f.gate.ID)}); !service.IsValidation(err) {
		t.Fatalf("self demotion: %v", err)
	}
	if _, err := a.Update(ctx, f.admin, f.admin.ID, service.UserInput{IsActive: boolPtr(false)}); !service.IsValidation(err) {
		t.Fatalf("self disable: %v", err)
	}
	if _, err := a.Update(ctx, f.admin, f.other.ID, service.UserInput{Email: strPtr("m1@yard.test")}); !errors.Is(err, service.ErrDuplicateEmail) {
		t.Fatalf("email collision: %v", err)
	}
	if _, err := a.Update(ctx, f.admin, f.other.ID, service.UserInput{Email: strPtr("M2@yard.test")}); err != nil {
		t.Fatalf("own email: %v", err)
	}
	if _, err := a.Update(ctx, f.admin, 999, service.UserInput{}); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}
}

func TestUserPasswordAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.users()

	if err := a.ChangePassword(ctx, f.admin, f.other.ID, ""); !service.IsValidation(err) {
		t.Fatalf("empty password: %v", err)
	}
	if err := a.ChangePassword(ctx, f.admin, f.other.ID, "fresh-pass"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if !utils.VerifyPassword(mustUser(t, f, f.other.ID).PasswordHash, "fresh-pass") {
		t.Fatal("password not replaced")
	}
	if err := a.ChangePassword(ctx, f.admin, 999, "fresh-pass"); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}

	if _, err := f.ledger().Register(ctx, f.soldier, f.registerInput("42")); err != nil {
		t.Fatal(err)
	}
	if err := a.Delete(ctx, f.admin, f.soldier.ID); !errors.Is(err, service.ErrHasDependents) {
		t.Fatalf("user with trucks: %v", err)
	}
	if err := a.Delete(ctx, f.admin, f.admin.ID); !service.IsValidation(err) {
		t.Fatalf("self delete: %v", err)
	}
	if err := a.Delete(ctx, f.admin, f.other.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := a.Get(ctx, f.admin, f.other.ID); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("deleted user still visible: %v", err)
	}

	list, err := a.List(ctx, f.admin)
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %d %v", len(list), err)
	}
}

func TestUserStatsFor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.ledger()
	for _, p := range []string{"1", "2"} {
		if _, err := l.Register(ctx, f.soldier, f.registerInput(p)); err != nil {
			t.Fatal(err)
		}
	}
	st, err := f.users().StatsFor(ctx, f.admin, f.soldier.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalTrucks != 2 || len(st.ByFactory) != 1 || len(st.ByDay) != 1 || st.ByDay[0].Day != "2026-03-10" {
		t.Fatalf("stats: %+v", st)
	}
}
