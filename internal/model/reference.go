package model

import (
    "strings"
    "time"
)

// ReferenceKind identifies one of the three lookup entities a truck
// registration points to.
type ReferenceKind string

const (
    KindContractor ReferenceKind = "contractor"
    KindFactory    ReferenceKind = "factory"
    KindGate       ReferenceKind = "gate"
)

// ReferenceKinds lists every kind in a stable order.
var ReferenceKinds = []ReferenceKind{KindContractor, KindFactory, KindGate}

// ParseReferenceKind accepts the singular or table form ("gate", "gates").
func ParseReferenceKind(s string) (ReferenceKind, bool) {
    s = strings.ToLower(strings.TrimSpace(s))
    for _, k := range ReferenceKinds {
        if s == string(k) || s == k.Table() {
            return k, true
        }
    }
    return "", false
}

// Table returns the SQL table holding entities of this kind.
func (k ReferenceKind) Table() string {
    switch k {
    case KindContractor:
        return "contractors"
    case KindFactory:
        return "factories"
    case KindGate:
        return "gates"
    }
    return ""
}

// TruckColumn returns the trucks column referencing this kind.
func (k ReferenceKind) TruckColumn() string { return string(k) + "_id" }

// Others returns the two remaining kinds, used for stats breakdowns.
func (k ReferenceKind) Others() []ReferenceKind {
    out := make([]ReferenceKind, 0, 2)
    for _, o := range ReferenceKinds {
        if o != k {
            out = append(out, o)
        }
    }
    return out
}

func (k ReferenceKind) String() string { return string(k) }

// Reference is the kind-agnostic record for a contractor, factory or
// gate. Phone and Address are only meaningful for contractors, Location
// only for factories; repositories ignore fields the kind does not store.
type Reference struct {
    ID          uint64
    Kind        ReferenceKind
    Name        string
    Phone       string
    Address     string
    Location    string
    IsActive    bool
    TotalTrucks int64
    CreatedAt   time.Time
    UpdatedAt   time.Time
}

// Contractor, Factory and Gate describe the physical tables for
// migrations. Names compare case-sensitively (utf8mb4_bin) so the unique
// index matches the registry's uniqueness rule.
type Contractor struct {
    ID          uint64 `gorm:"primaryKey"`
    Name        string `gorm:"type:varchar(100) COLLATE utf8mb4_bin;not null;uniqueIndex"`
    Phone       string `gorm:"type:varchar(20);not null;default:''"`
    Address     string `gorm:"type:varchar(200);not null;default:''"`
    IsActive    bool   `gorm:"not null;default:true"`
    TotalTrucks int64  `gorm:"not null;default:0"`
    CreatedAt   time.Time
    UpdatedAt   time.Time
}

type Factory struct {
    ID          uint64 `gorm:"primaryKey"`
    Name        string `gorm:"type:varchar(100) COLLATE utf8mb4_bin;not null;uniqueIndex"`
    Location    string `gorm:"type:varchar(200);not null;default:''"`
    IsActive    bool   `gorm:"not null;default:true"`
    TotalTrucks int64  `gorm:"not null;default:0"`
    CreatedAt   time.Time
    UpdatedAt   time.Time
}

type Gate struct {
    ID          uint64 `gorm:"primaryKey"`
    Name        string `gorm:"type:varchar(100) COLLATE utf8mb4_bin;not null;uniqueIndex"`
    IsActive    bool   `gorm:"not null;default:true"`
    TotalTrucks int64  `gorm:"not null;default:0"`
    CreatedAt   time.Time
    UpdatedAt   time.Time
}
