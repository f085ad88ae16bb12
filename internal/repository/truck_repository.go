package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/cane-truck-registry/internal/model"
)

// TruckRepo encapsulates all queries against the trucks ledger. Every
// write that changes which references a truck points to also adjusts the
// denormalized total_trucks counters, in the same transaction.
type TruckRepo struct {
	db *sql.DB
}

// NewTruckRepo constructs a TruckRepo with the provided DB handle.
func NewTruckRepo(db *sql.DB) *TruckRepo {
	return &TruckRepo{db: db}
}

const truckSelect = `SELECT t.id, t.plate_number, t.contractor_id, c.name, t.factory_id, f.name,
		t.gate_id, g.name, t.factory_card_number, t.device_card_number, t.registered_by, u.name,
		t.status, t.registered_at, t.edit_deadline, t.delivered_at, t.notes, t.can_edit,
		t.created_at, t.updated_at
	FROM trucks t
	JOIN contractors c ON c.id = t.contractor_id
	JOIN factories f   ON f.id = t.factory_id
	JOIN gates g       ON g.id = t.gate_id
	JOIN users u       ON u.id = t.registered_by`

func scanTruck(s rowScanner) (*model.Truck, error) {
	var (
		t         model.Truck
		delivered sql.NullTime
	)
	if err := s.Scan(&t.ID, &t.PlateNumber, &t.ContractorID, &t.ContractorName, &t.FactoryID, &t.FactoryName,
		&t.GateID, &t.GateName, &t.FactoryCardNumber, &t.DeviceCardNumber, &t.RegisteredBy, &t.RegisteredByName,
		&t.Status, &t.RegisteredAt, &t.EditDeadline, &delivered, &t.Notes, &t.CanEdit,
		&t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if delivered.Valid {
		d := delivered.Time
		t.DeliveredAt = &d
	}
	return &t, nil
}

// GetByID fetches one truck with its display names joined.
func (r *TruckRepo) GetByID(ctx context.Context, id uint64) (*model.Truck, error) {
	t, err := scanTruck(r.db.QueryRowContext(ctx, truckSelect+" WHERE t.id = ?", id))
	if err != nil {
		return nil, translate(err)
	}
	return t, nil
}

// PlateTaken reports whether plate is already registered by a truck other
// than excludeID. The unique index on plate_number is authoritative.
func (r *TruckRepo) PlateTaken(ctx context.Context, plate int64, excludeID uint64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM trucks WHERE plate_number = ? AND id <> ?)", plate, excludeID).Scan(&exists)
	return exists, err
}

// Create inserts t and increments the counters of its contractor,
// factory and gate atomically with the insert.
func (r *TruckRepo) Create(ctx context.Context, t *model.Truck) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO trucks
			(plate_number, contractor_id, factory_id, gate_id, factory_card_number, device_card_number,
			 registered_by, status, registered_at, edit_deadline, notes, can_edit, created_at, updated_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			t.PlateNumber, t.ContractorID, t.FactoryID, t.GateID, t.FactoryCardNumber, t.DeviceCardNumber,
			t.RegisteredBy, string(t.Status), t.RegisteredAt.UTC(), t.EditDeadline.UTC(), t.Notes, t.CanEdit,
			t.RegisteredAt.UTC(), t.RegisteredAt.UTC())
		if err != nil {
			return translate(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		t.ID = uint64(id)
		t.CreatedAt, t.UpdatedAt = t.RegisteredAt, t.RegisteredAt

		for _, ref := range truckRefs(t) {
			if err := bumpCounter(ctx, tx, ref.kind, ref.id, 1); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update writes the editable columns of next. Counters move from the
// references of prev to those of next when they differ.
func (r *TruckRepo) Update(ctx context.Context, prev, next *model.Truck) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE trucks SET plate_number = ?, contractor_id = ?, factory_id = ?,
			gate_id = ?, factory_card_number = ?, device_card_number = ?, notes = ?, updated_at = ?
			WHERE id = ?`,
			next.PlateNumber, next.ContractorID, next.FactoryID, next.GateID, next.FactoryCardNumber,
			next.DeviceCardNumber, next.Notes, time.Now().UTC(), next.ID)
		if err != nil {
			return translate(err)
		}
		if err := expectRow(res); err != nil {
			return err
		}

		before, after := truckRefs(prev), truckRefs(next)
		for i := range before {
			if before[i].id == after[i].id {
				continue
			}
			if err := bumpCounter(ctx, tx, before[i].kind, before[i].id, -1); err != nil {
				return err
			}
			if err := bumpCounter(ctx, tx, after[i].kind, after[i].id, 1); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateStatus moves a truck from one status to another. The row is only
// changed while it is still in status from; otherwise ErrConflict.
func (r *TruckRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.TruckStatus, deliveredAt *time.Time) error {
	var delivered any
	if deliveredAt != nil {
		delivered = deliveredAt.UTC()
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE trucks SET status = ?, delivered_at = COALESCE(?, delivered_at), updated_at = ? WHERE id = ? AND status = ?",
		string(to), delivered, time.Now().UTC(), id, string(from))
	if err != nil {
		return err
	}
	if err := expectRow(res); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrConflict
		}
		return err
	}
	return nil
}

type refPointer struct {
	kind model.ReferenceKind
	id   uint64
}

func truckRefs(t *model.Truck) []refPointer {
	return []refPointer{
		{model.KindContractor, t.ContractorID},
		{model.KindFactory, t.FactoryID},
		{model.KindGate, t.GateID},
	}
}

// bumpCounter adds delta to total_trucks with a single atomic UPDATE.
// The counter never goes below zero.
func bumpCounter(ctx context.Context, tx *sql.Tx, kind model.ReferenceKind, id uint64, delta int) error {
	q := fmt.Sprintf("UPDATE %s SET total_trucks = GREATEST(total_trucks + ?, 0) WHERE id = ?", kind.Table())
	if _, err := tx.ExecContext(ctx, q, delta, id); err != nil {
		return fmt.Errorf("bump %s counter: %w", kind, err)
	}
	return nil
}

func (r *TruckRepo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
