package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/cane-truck-registry/internal/model"
)

// truckWhere renders the WHERE clause and arguments for f.
func truckWhere(f model.TruckFilter) (string, []any) {
	where := []string{}
	args := []any{}

	if f.PlateNumber != nil {
		where = append(where, "t.plate_number = ?")
		args = append(args, *f.PlateNumber)
	}
	if s := strings.TrimSpace(f.CardSearch); s != "" {
		like := "%" + escapeLike(strings.ToLower(s)) + "%"
		where = append(where, "(CAST(t.factory_card_number AS CHAR) LIKE ? OR CAST(t.device_card_number AS CHAR) LIKE ?)")
		args = append(args, like, like)
	}
	if f.ContractorID != 0 {
		where = append(where, "t.contractor_id = ?")
		args = append(args, f.ContractorID)
	}
	if f.FactoryID != 0 {
		where = append(where, "t.factory_id = ?")
		args = append(args, f.FactoryID)
	}
	if f.GateID != 0 {
		where = append(where, "t.gate_id = ?")
		args = append(args, f.GateID)
	}
	if f.RegisteredBy != 0 {
		where = append(where, "t.registered_by = ?")
		args = append(args, f.RegisteredBy)
	}
	if f.Status != "" {
		where = append(where, "t.status = ?")
		args = append(args, string(f.Status))
	}
	if f.From != nil {
		where = append(where, "t.registered_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		where = append(where, "t.registered_at <= ?")
		args = append(args, f.To.UTC())
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}
	return cond, args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Search returns one page of trucks matching f, newest registration
// first, together with the total number of matches.
func (r *TruckRepo) Search(ctx context.Context, f model.TruckFilter) ([]*model.Truck, int, error) {
	cond, args := truckWhere(f)

	var total int
	countSQL := "SELECT COUNT(*) FROM trucks t WHERE " + cond
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := truckSelect + " WHERE " + cond + " ORDER BY t.registered_at DESC, t.id DESC LIMIT ? OFFSET ?"
	argsData := append(append([]any{}, args...), f.PageSize, f.Offset())

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]*model.Truck, 0, f.PageSize)
	for rows.Next() {
		t, err := scanTruck(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
