package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/cane-truck-registry/internal/model"
)

// StatsRepo runs read-only aggregations over the trucks ledger and the
// counter rebuild.
type StatsRepo struct {
	db *sql.DB
}

func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

func scopeWhere(s model.StatsScope) (string, []any) {
	where := []string{}
	args := []any{}
	if s.Since != nil {
		where = append(where, "t.registered_at >= ?")
		args = append(args, s.Since.UTC())
	}
	if s.ContractorID != 0 {
		where = append(where, "t.contractor_id = ?")
		args = append(args, s.ContractorID)
	}
	if s.FactoryID != 0 {
		where = append(where, "t.factory_id = ?")
		args = append(args, s.FactoryID)
	}
	if s.GateID != 0 {
		where = append(where, "t.gate_id = ?")
		args = append(args, s.GateID)
	}
	if s.RegisteredBy != 0 {
		where = append(where, "t.registered_by = ?")
		args = append(args, s.RegisteredBy)
	}
	if len(where) == 0 {
		return "1=1", args
	}
	return strings.Join(where, " AND "), args
}

// Count returns the number of trucks in scope.
func (r *StatsRepo) Count(ctx context.Context, s model.StatsScope) (int64, error) {
	cond, args := scopeWhere(s)
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trucks t WHERE "+cond, args...).Scan(&n)
	return n, err
}

// GroupByReference counts trucks in scope per entity of kind, largest
// count first.
func (r *StatsRepo) GroupByReference(ctx context.Context, kind model.ReferenceKind, s model.StatsScope) ([]model.Bucket, error) {
	cond, args := scopeWhere(s)
	q := fmt.Sprintf(`SELECT e.id, e.name, COUNT(*) AS cnt
		FROM trucks t
		JOIN %s e ON e.id = t.%s
		WHERE %s
		GROUP BY e.id, e.name
		ORDER BY cnt DESC, e.name ASC`, kind.Table(), kind.TruckColumn(), cond)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Bucket, 0)
	for rows.Next() {
		var b model.Bucket
		if err := rows.Scan(&b.ID, &b.Name, &b.Count); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GroupByDay counts trucks in scope per calendar day (UTC), oldest first.
func (r *StatsRepo) GroupByDay(ctx context.Context, s model.StatsScope) ([]model.DayBucket, error) {
	cond, args := scopeWhere(s)
	q := `SELECT DATE_FORMAT(t.registered_at, '%Y-%m-%d') AS day, COUNT(*)
		FROM trucks t
		WHERE ` + cond + `
		GROUP BY day
		ORDER BY day ASC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.DayBucket, 0)
	for rows.Next() {
		var d model.DayBucket
		if err := rows.Scan(&d.Day, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RebuildCounters recomputes total_trucks for every reference entity
// from the ledger, one statement per table.
func (r *StatsRepo) RebuildCounters(ctx context.Context) error {
	for _, kind := range model.ReferenceKinds {
		q := fmt.Sprintf(`UPDATE %s e SET e.total_trucks =
			(SELECT COUNT(*) FROM trucks t WHERE t.%s = e.id)`, kind.Table(), kind.TruckColumn())
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("rebuild %s counters: %w", kind, err)
		}
	}
	return nil
}
