package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/iliyamo/cane-truck-registry/internal/handler"
	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/repository"
	"github.com/iliyamo/cane-truck-registry/internal/service"
	"github.com/iliyamo/cane-truck-registry/internal/utils"
)

// seedFile is the YAML layout of a seed file. Users reference their gate
// by name.
type seedFile struct {
	Contractors []struct {
		Name    string `yaml:"name" validate:"required,notblank,max=100"`
		Phone   string `yaml:"phone" validate:"omitempty,phone"`
		Address string `yaml:"address" validate:"max=200"`
	} `yaml:"contractors" validate:"dive"`
	Factories []struct {
		Name     string `yaml:"name" validate:"required,notblank,max=100"`
		Location string `yaml:"location" validate:"max=200"`
	} `yaml:"factories" validate:"dive"`
	Gates []struct {
		Name string `yaml:"name" validate:"required,notblank,max=100"`
	} `yaml:"gates" validate:"dive"`
	Users []struct {
		Email    string `yaml:"email" validate:"required,email,max=191"`
		Password string `yaml:"password" validate:"required,min=6,max=72"`
		Name     string `yaml:"name" validate:"required,notblank,max=100"`
		Role     string `yaml:"role"`
		Gate     string `yaml:"gate"`
	} `yaml:"users" validate:"dive"`
}

func parseSeed(r io.Reader) (*seedFile, error) {
	var s seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if err := handler.NewValidator().Validate(&s); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return &s, nil
}

// seeder inserts what is missing and leaves existing rows alone, so a
// seed file can be applied any number of times.
type seeder struct {
	refs  service.References
	users service.UserStore
	cost  int
	log   logrus.FieldLogger

	created, skipped int
}

func (s *seeder) apply(ctx context.Context, f *seedFile) error {
	for _, c := range f.Contractors {
		if err := s.reference(ctx, &model.Reference{Kind: model.KindContractor, Name: c.Name, Phone: c.Phone, Address: c.Address}); err != nil {
			return err
		}
	}
	for _, fa := range f.Factories {
		if err := s.reference(ctx, &model.Reference{Kind: model.KindFactory, Name: fa.Name, Location: fa.Location}); err != nil {
			return err
		}
	}
	for _, g := range f.Gates {
		if err := s.reference(ctx, &model.Reference{Kind: model.KindGate, Name: g.Name}); err != nil {
			return err
		}
	}

	gates, err := s.refs[model.KindGate].List(ctx, false)
	if err != nil {
		return err
	}
	gateIDs := map[string]uint64{}
	for _, g := range gates {
		gateIDs[g.Name] = g.ID
	}

	for _, u := range f.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if _, err := s.users.GetByEmail(ctx, email); err == nil {
			s.skipped++
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		role, ok := model.ParseRole(u.Role)
		if !ok {
			return fmt.Errorf("user %s: unknown role %q", email, u.Role)
		}
		user := &model.User{Email: email, Name: u.Name, Role: role, IsActive: true}
		if u.Gate != "" {
			id, ok := gateIDs[u.Gate]
			if !ok {
				return fmt.Errorf("user %s: unknown gate %q", email, u.Gate)
			}
			user.GateID = &id
		}
		if user.PasswordHash, err = utils.HashPassword(u.Password, s.cost); err != nil {
			return fmt.Errorf("user %s: %w", email, err)
		}
		if err := s.users.Create(ctx, user); err != nil {
			return fmt.Errorf("user %s: %w", email, err)
		}
		s.created++
		s.log.WithFields(logrus.Fields{"email": email, "role": role}).Info("seed: user created")
	}
	return nil
}

func (s *seeder) reference(ctx context.Context, e *model.Reference) error {
	e.Name = strings.TrimSpace(e.Name)
	e.IsActive = true
	store := s.refs[e.Kind]
	taken, err := store.NameTaken(ctx, e.Name, 0)
	if err != nil {
		return err
	}
	if taken {
		s.skipped++
		return nil
	}
	if err := store.Create(ctx, e); err != nil {
		return fmt.Errorf("%s %q: %w", e.Kind, e.Name, err)
	}
	s.created++
	s.log.WithFields(logrus.Fields{"kind": e.Kind, "name": e.Name}).Info("seed: reference created")
	return nil
}
