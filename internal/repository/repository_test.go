package repository

import (
	"database/sql"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cane-truck-registry/internal/model"
)

func TestTranslate(t *testing.T) {
	other := errors.New("boom")
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, ErrNotFound},
		{"duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1234' for key 'trucks.plate_number'"}, ErrDuplicate},
		{"parent referenced", &mysql.MySQLError{Number: 1451, Message: "Cannot delete or update a parent row"}, ErrReferenced},
		{"missing parent", &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"}, ErrMissingParent},
		{"other mysql", &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout"}, nil},
		{"plain", other, other},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := translate(tc.in)
			switch {
			case tc.in == nil:
				if got != nil {
					t.Fatalf("want nil, got %v", got)
				}
			case tc.want == nil:
				for _, s := range []error{ErrNotFound, ErrDuplicate, ErrReferenced, ErrMissingParent} {
					if errors.Is(got, s) {
						t.Fatalf("unexpected sentinel %v", got)
					}
				}
			default:
				if !errors.Is(got, tc.want) {
					t.Fatalf("want %v, got %v", tc.want, got)
				}
			}
		})
	}
}

func TestTruckWhere(t *testing.T) {
	plate := int64(1234)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	cond, args := truckWhere(model.TruckFilter{})
	if cond != "1=1" || len(args) != 0 {
		t.Fatalf("empty filter: %q %v", cond, args)
	}

	cond, args = truckWhere(model.TruckFilter{
		PlateNumber:  &plate,
		ContractorID: 3,
		RegisteredBy: 9,
		Status:       model.StatusInTransit,
		From:         &from,
	})
	for _, frag := range []string{"t.plate_number = ?", "t.contractor_id = ?", "t.registered_by = ?", "t.status = ?", "t.registered_at >= ?"} {
		if !strings.Contains(cond, frag) {
			t.Fatalf("missing %q in %q", frag, cond)
		}
	}
	if len(args) != 5 || args[0] != plate || args[3] != "in_transit" {
		t.Fatalf("args: %v", args)
	}

	_, args = truckWhere(model.TruckFilter{CardSearch: "12_%"})
	if len(args) != 2 || args[0] != `%12\_\%%` {
		t.Fatalf("like args: %v", args)
	}
}

func TestScopeWhere(t *testing.T) {
	cond, args := scopeWhere(model.StatsScope{}.WithReference(model.KindGate, 4))
	if cond != "t.gate_id = ?" || len(args) != 1 || args[0] != uint64(4) {
		t.Fatalf("got %q %v", cond, args)
	}
}

func TestTruckFilterOffset(t *testing.T) {
	if got := (model.TruckFilter{Page: 3, PageSize: 50}).Offset(); got != 100 {
		t.Fatalf("offset = %d", got)
	}
	if got := (model.TruckFilter{Page: 0, PageSize: 50}).Offset(); got != 0 {
		t.Fatalf("offset = %d", got)
	}
	if got := (model.TruckFilter{Page: 1<<62 + 1, PageSize: 50}).Offset(); got != math.MaxInt {
		t.Fatalf("huge page must saturate, got %d", got)
	}
}
