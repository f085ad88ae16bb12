package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/repository"
	"github.com/iliyamo/cane-truck-registry/internal/utils"
)

// SessionIssuer validates credentials and issues session tokens.
type SessionIssuer struct {
	Users  UserStore
	Secret string
	TTL    time.Duration
	Log    logrus.FieldLogger
	Now    func() time.Time
	// BcryptCost should match the cost stored passwords were hashed
	// with; unknown emails are checked against a decoy of this cost.
	BcryptCost int

	decoyOnce sync.Once
	decoy     string
}

func NewSessionIssuer(users UserStore, secret string, ttl time.Duration, log logrus.FieldLogger) *SessionIssuer {
	return &SessionIssuer{Users: users, Secret: secret, TTL: ttl, Log: log, Now: time.Now}
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// Login checks email and password and returns a signed token. Unknown
// email, wrong password and disabled account all yield
// ErrInvalidCredentials.
func (s *SessionIssuer) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		ve := &ValidationError{}
		if email == "" {
			ve.Add("email", "email is required")
		}
		if password == "" {
			ve.Add("password", "password is required")
		}
		return nil, ve
	}

	u, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.compareDecoy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) || !u.IsActive {
		return nil, ErrInvalidCredentials
	}

	now := s.Now()
	if err := s.Users.TouchLastLogin(ctx, u.ID, now); err != nil {
		s.Log.WithError(err).WithField("user_id", u.ID).Warn("login: update last_login_at failed")
	} else {
		u.LastLoginAt = &now
	}

	tok, err := utils.NewSessionToken(s.Secret, u.ID, string(u.Role), s.TTL, now)
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok.Token, ExpiresAt: tok.Exp, User: u}, nil
}

// compareDecoy spends one bcrypt comparison so that a login for an
// unknown email takes as long as one with a wrong password.
func (s *SessionIssuer) compareDecoy(password string) {
	s.decoyOnce.Do(func() {
		h, err := utils.HashPassword(uuid.NewString(), s.BcryptCost)
		if err != nil {
			s.Log.WithError(err).Warn("login: decoy hash failed")
			return
		}
		s.decoy = h
	})
	if s.decoy != "" {
		utils.VerifyPassword(s.decoy, password)
	}
}
