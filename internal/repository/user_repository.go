package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/cane-truck-registry/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userSelect = `SELECT u.id, u.email, u.password_hash, u.name, u.role, u.gate_id,
		COALESCE(g.name, ''), u.is_active, u.last_login_at, u.created_at, u.updated_at
	FROM users u
	LEFT JOIN gates g ON g.id = u.gate_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*model.User, error) {
	var (
		u      model.User
		gateID sql.NullInt64
		last   sql.NullTime
	)
	if err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &gateID,
		&u.GateName, &u.IsActive, &last, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if gateID.Valid {
		id := uint64(gateID.Int64)
		u.GateID = &id
	}
	if last.Valid {
		t := last.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx, userSelect+" WHERE u.email = ? LIMIT 1", email))
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, userSelect+" WHERE u.id = ? LIMIT 1", id))
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

// List returns every user, newest first.
func (r *UserRepo) List(ctx context.Context) ([]*model.User, error) {
	rows, err := r.DB.QueryContext(ctx, userSelect+" ORDER BY u.created_at DESC, u.id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Create inserts u and sets its ID. The email is expected to be
// normalized and the password already hashed.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, name, role, gate_id, is_active, created_at, updated_at) VALUES (?,?,?,?,?,?,NOW(),NOW())",
		u.Email, u.PasswordHash, u.Name, string(u.Role), nullableID(u.GateID), u.IsActive)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// Update writes the mutable profile columns of u.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email = ?, name = ?, role = ?, gate_id = ?, is_active = ?, updated_at = NOW() WHERE id = ?",
		u.Email, u.Name, string(u.Role), nullableID(u.GateID), u.IsActive, u.ID)
	if err != nil {
		return translate(err)
	}
	return expectRow(res)
}

// UpdatePassword replaces the stored hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET password_hash = ?, updated_at = NOW() WHERE id = ?", hash, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// TouchLastLogin records a successful login.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET last_login_at = ? WHERE id = ?", at.UTC(), id)
	return err
}

// Delete removes the user. Users that registered trucks are protected by
// the trucks.registered_by foreign key and yield ErrReferenced.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return translate(err)
	}
	return expectRow(res)
}

func nullableID(id *uint64) any {
	if id == nil || *id == 0 {
		return nil
	}
	return *id
}

// expectRow turns a zero-row UPDATE/DELETE into ErrNotFound. MySQL reports
// matched rows only with clientFoundRows, so Open sets it.
func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
