package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/repository"
	"github.com/iliyamo/cane-truck-registry/internal/utils"
)

// UserAdmin is the admin-only management of the identity store.
type UserAdmin struct {
	Users      UserStore
	Gates      ReferenceStore
	Stats      StatsStore
	BcryptCost int
	Log        logrus.FieldLogger
}

func NewUserAdmin(users UserStore, gates ReferenceStore, stats StatsStore, cost int, log logrus.FieldLogger) *UserAdmin {
	return &UserAdmin{Users: users, Gates: gates, Stats: stats, BcryptCost: cost, Log: log}
}

// UserInput carries create and update fields. Nil leaves a field
// unchanged on update; Password is only read on create.
type UserInput struct {
	Email    *string
	Password *string
	Name     *string
	Role     *string
	GateID   *uint64
	IsActive *bool
}

// UserStats summarizes the registrations of one user.
type UserStats struct {
	User        *model.User
	TotalTrucks int64
	ByFactory   []model.Bucket
	ByDay       []model.DayBucket
}

// List returns every user, newest first.
func (a *UserAdmin) List(ctx context.Context, actor *model.User) ([]*model.User, error) {
	if err := Authorize(actor, model.CapManageUsers); err != nil {
		return nil, err
	}
	return a.Users.List(ctx)
}

// Get returns one user.
func (a *UserAdmin) Get(ctx context.Context, actor *model.User, id uint64) (*model.User, error) {
	if err := Authorize(actor, model.CapManageUsers); err != nil {
		return nil, err
	}
	return a.load(ctx, id)
}

// Create adds an active user. Military users must be assigned to an
// existing gate.
func (a *UserAdmin) Create(ctx context.Context, actor *model.User, in UserInput) (*model.User, error) {
	if err := Authorize(actor, model.CapManageUsers); err != nil {
		return nil, err
	}
	u := &model.User{Role: model.RoleMilitary, IsActive: true}
	ve := &ValidationError{}
	if in.Email == nil {
		ve.Add("email", "email is required")
	}
	if in.Name == nil {
		ve.Add("name", "name is required")
	}
	if in.Password == nil {
		ve.Add("password", "password is required")
	}
	a.apply(u, in, ve)
	if err := ve.Err(); err != nil {
		return nil, err
	}
	if err := a.checkGate(ctx, u); err != nil {
		return nil, err
	}
	if err := a.checkEmail(ctx, u.Email, 0); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(*in.Password, a.BcryptCost)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash
	if err := a.Users.Create(ctx, u); err != nil {
		return nil, a.writeErr(err)
	}
	a.Log.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role, "by": actor.ID}).Info("user created")
	return a.load(ctx, u.ID)
}

// Update changes profile fields of user id.
func (a *UserAdmin) Update(ctx context.Context, actor *model.User, id uint64, in UserInput) (*model.User, error) {
	if err := Authorize(actor, model.CapManageUsers); err != nil {
		return nil, err
	}
	u, err := a.load(ctx, id)
	if err != nil {
		return nil, err
	}
	ve := &ValidationError{}
	a.apply(u, in, ve)
	if u.ID == actor.ID && (!u.IsActive || u.Role != model.RoleAdmin) {
		ve.Add("role", "admins cannot demote or disable themselves")
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}
	if err := a.checkGate(ctx, u); err != nil {
		return nil, err
	}
	if in.Email != nil {
		if err := a.checkEmail(ctx, u.Email, u.ID); err != nil {
			return nil, err
		}
	}
	if err := a.Users.Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, a.writeErr(err)
	}
	return a.load(ctx, id)
}

// ChangePassword replaces the password of user id.
func (a *UserAdmin) ChangePassword(ctx context.Context, actor *model.User, id uint64, password string) error {
	if err := Authorize(actor, model.CapManageUsers); err != nil {
		return err
	}
	if password == "" {
		ve := &ValidationError{}
		ve.Add("password", "password is required")
		return ve
	}
	hash, err := utils.HashPassword(password, a.BcryptCost)
	if err != nil {
		return err
	}
	if err := a.Users.UpdatePassword(ctx, id, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Delete removes a user that owns no ledger entries. Users with trucks
// must be disabled instead.
func (a *UserAdmin) Delete(ctx context.Context, actor *model.User, id uint64) error {
	if err := Authorize(actor, model.CapManageUsers); err != nil {
		return err
	}
	if id == actor.ID {
		ve := &ValidationError{}
		ve.Add("id", "admins cannot delete themselves")
		return ve
	}
	if err := a.Users.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return ErrNotFound
		case errors.Is(err, repository.ErrReferenced):
			return ErrHasDependents
		}
		return err
	}
	return nil
}

// StatsFor returns registration counts for user id.
func (a *UserAdmin) StatsFor(ctx context.Context, actor *model.User, id uint64) (*UserStats, error) {
	if err := Authorize(actor, model.CapViewStats); err != nil {
		return nil, err
	}
	u, err := a.load(ctx, id)
	if err != nil {
		return nil, err
	}
	scope := model.StatsScope{RegisteredBy: u.ID}
	out := &UserStats{User: u}
	if out.TotalTrucks, err = a.Stats.Count(ctx, scope); err != nil {
		return nil, err
	}
	if out.ByFactory, err = a.Stats.GroupByReference(ctx, model.KindFactory, scope); err != nil {
		return nil, err
	}
	if out.ByDay, err = a.Stats.GroupByDay(ctx, scope); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *UserAdmin) apply(u *model.User, in UserInput, ve *ValidationError) {
	if in.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*in.Email))
		if u.Email == "" {
			ve.Add("email", "email is required")
		}
	}
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
		if u.Name == "" {
			ve.Add("name", "name is required")
		}
	}
	if in.Role != nil {
		r, ok := model.ParseRole(*in.Role)
		if !ok {
			ve.Add("role", "role must be admin or military")
		}
		u.Role = r
	}
	if in.GateID != nil {
		gid := *in.GateID
		u.GateID = &gid
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if u.Role == model.RoleMilitary && !u.HasGate() {
		ve.Add("gateId", "gateId is required for military users")
	}
	if u.Role == model.RoleAdmin {
		u.GateID = nil
	}
}

func (a *UserAdmin) checkGate(ctx context.Context, u *model.User) error {
	if !u.HasGate() {
		return nil
	}
	if _, err := a.Gates.GetByID(ctx, *u.GateID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrReferenceNotFound
		}
		return err
	}
	return nil
}

func (a *UserAdmin) checkEmail(ctx context.Context, email string, selfID uint64) error {
	existing, err := a.Users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return ErrDuplicateEmail
	}
	return nil
}

func (a *UserAdmin) writeErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return ErrDuplicateEmail
	case errors.Is(err, repository.ErrMissingParent):
		return ErrReferenceNotFound
	}
	return err
}

func (a *UserAdmin) load(ctx context.Context, id uint64) (*model.User, error) {
	u, err := a.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}
