// This file defines the repository shared by the three reference tables
// (contractors, factories, gates). The tables differ only in a couple of
// descriptive columns, so one ReferenceRepo is instantiated per kind.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/cane-truck-registry/internal/model"
)

// ReferenceRepo encapsulates all queries for one reference kind.
type ReferenceRepo struct {
	db   *sql.DB
	kind model.ReferenceKind
}

// NewReferenceRepo constructs a ReferenceRepo for kind.
func NewReferenceRepo(db *sql.DB, kind model.ReferenceKind) *ReferenceRepo {
	return &ReferenceRepo{db: db, kind: kind}
}

// Kind returns the reference kind served by r.
func (r *ReferenceRepo) Kind() model.ReferenceKind { return r.kind }

// extraColumns lists the kind-specific columns in a fixed order.
func (r *ReferenceRepo) extraColumns() []string {
	switch r.kind {
	case model.KindContractor:
		return []string{"phone", "address"}
	case model.KindFactory:
		return []string{"location"}
	}
	return nil
}

// extraTargets returns scan destinations matching extraColumns.
func (r *ReferenceRepo) extraTargets(e *model.Reference) []any {
	switch r.kind {
	case model.KindContractor:
		return []any{&e.Phone, &e.Address}
	case model.KindFactory:
		return []any{&e.Location}
	}
	return nil
}

// extraValues returns bind values matching extraColumns.
func (r *ReferenceRepo) extraValues(e *model.Reference) []any {
	switch r.kind {
	case model.KindContractor:
		return []any{e.Phone, e.Address}
	case model.KindFactory:
		return []any{e.Location}
	}
	return nil
}

func (r *ReferenceRepo) selectSQL() string {
	cols := append([]string{"id", "name"}, r.extraColumns()...)
	cols = append(cols, "is_active", "total_trucks", "created_at", "updated_at")
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + r.kind.Table()
}

func (r *ReferenceRepo) scan(s rowScanner) (*model.Reference, error) {
	e := &model.Reference{Kind: r.kind}
	dest := append([]any{&e.ID, &e.Name}, r.extraTargets(e)...)
	dest = append(dest, &e.IsActive, &e.TotalTrucks, &e.CreatedAt, &e.UpdatedAt)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	return e, nil
}

// List returns entities ordered by name. When activeOnly is set inactive
// rows are skipped.
func (r *ReferenceRepo) List(ctx context.Context, activeOnly bool) ([]*model.Reference, error) {
	q := r.selectSQL()
	if activeOnly {
		q += " WHERE is_active = 1"
	}
	q += " ORDER BY name ASC"
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*model.Reference, 0)
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetByID fetches one entity; ErrNotFound when absent.
func (r *ReferenceRepo) GetByID(ctx context.Context, id uint64) (*model.Reference, error) {
	e, err := r.scan(r.db.QueryRowContext(ctx, r.selectSQL()+" WHERE id = ?", id))
	if err != nil {
		return nil, translate(err)
	}
	return e, nil
}

// NameTaken reports whether another entity (active or not) already uses
// name. It only serves early validation; the unique index decides.
func (r *ReferenceRepo) NameTaken(ctx context.Context, name string, excludeID uint64) (bool, error) {
	q := "SELECT EXISTS(SELECT 1 FROM " + r.kind.Table() + " WHERE name = ? AND id <> ?)"
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, name, excludeID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Create inserts e with a zero counter and sets its ID and timestamps.
func (r *ReferenceRepo) Create(ctx context.Context, e *model.Reference) error {
	cols := append([]string{"name"}, r.extraColumns()...)
	cols = append(cols, "is_active", "total_trucks", "created_at", "updated_at")
	args := append([]any{e.Name}, r.extraValues(e)...)
	args = append(args, e.IsActive)

	marks := strings.Repeat("?, ", len(args)) + "0, NOW(), NOW()"
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", r.kind.Table(), strings.Join(cols, ", "), marks)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*e = *created
	return nil
}

// Update writes name, descriptive columns and the active flag. The
// counter is owned by the truck ledger and is never written here.
func (r *ReferenceRepo) Update(ctx context.Context, e *model.Reference) error {
	sets := []string{"name = ?"}
	for _, c := range r.extraColumns() {
		sets = append(sets, c+" = ?")
	}
	sets = append(sets, "is_active = ?", "updated_at = NOW()")
	args := append([]any{e.Name}, r.extraValues(e)...)
	args = append(args, e.IsActive, e.ID)

	q := "UPDATE " + r.kind.Table() + " SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return translate(err)
	}
	return expectRow(res)
}

// Delete hard-deletes the entity. Trucks reference it with ON DELETE
// RESTRICT so a referenced entity yields ErrReferenced.
func (r *ReferenceRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM "+r.kind.Table()+" WHERE id = ?", id)
	if err != nil {
		return translate(err)
	}
	return expectRow(res)
}
