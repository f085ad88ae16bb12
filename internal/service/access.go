package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/repository"
	"github.com/iliyamo/cane-truck-registry/internal/utils"
)

// AccessControl resolves bearer tokens to live users. It only reads the
// identity store.
type AccessControl struct {
	Users  UserStore
	Secret string
}

func NewAccessControl(users UserStore, secret string) *AccessControl {
	return &AccessControl{Users: users, Secret: secret}
}

// Authenticate verifies raw and loads its subject. The user must still
// exist and be active, so disabling an account revokes its tokens.
func (a *AccessControl) Authenticate(ctx context.Context, raw string) (*model.User, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingCredential
	}
	id, _, err := utils.ParseSessionToken(a.Secret, raw)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	u, err := a.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownOrInactiveUser
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrUnknownOrInactiveUser
	}
	return u, nil
}

// RequireRole fails with ErrInsufficientPrivilege unless u has one of roles.
func RequireRole(u *model.User, roles ...model.Role) error {
	if u == nil {
		return ErrMissingCredential
	}
	for _, r := range roles {
		if u.Role == r {
			return nil
		}
	}
	return ErrInsufficientPrivilege
}

// Authorize fails with ErrInsufficientPrivilege unless u's role grants c.
func Authorize(u *model.User, c model.Capability) error {
	if u == nil {
		return ErrMissingCredential
	}
	if !u.Role.Can(c) {
		return ErrInsufficientPrivilege
	}
	return nil
}
