package model

import (
    "math"
    "strings"
    "time"
)

// TruckStatus is the lifecycle state of a registration.
type TruckStatus string

const (
    StatusRegistered TruckStatus = "registered"
    StatusInTransit  TruckStatus = "in_transit"
    StatusDelivered  TruckStatus = "delivered"
    StatusCancelled  TruckStatus = "cancelled"
)

// transitions lists the allowed next states. Delivered and cancelled
// have no entry and are therefore terminal.
var transitions = map[TruckStatus][]TruckStatus{
    StatusRegistered: {StatusInTransit, StatusCancelled},
    StatusInTransit:  {StatusDelivered, StatusCancelled},
}

// ParseTruckStatus normalizes s and reports whether it is a known status.
func ParseTruckStatus(s string) (TruckStatus, bool) {
    st := TruckStatus(strings.ToLower(strings.TrimSpace(s)))
    switch st {
    case StatusRegistered, StatusInTransit, StatusDelivered, StatusCancelled:
        return st, true
    }
    return "", false
}

// Terminal reports whether no further transition is possible.
func (s TruckStatus) Terminal() bool { return len(transitions[s]) == 0 }

// CanTransitionTo reports whether s -> next is an allowed edge.
func (s TruckStatus) CanTransitionTo(next TruckStatus) bool {
    for _, n := range transitions[s] {
        if n == next {
            return true
        }
    }
    return false
}

func (s TruckStatus) String() string { return string(s) }

// Truck represents one registration in the `trucks` table. Plate numbers
// are unique across the whole ledger, whatever the status.
//
// EditDeadline is fixed at registration (RegisteredAt plus the edit
// window) and is the authority for edit eligibility; CanEdit is kept as
// an administrative kill switch.
type Truck struct {
    ID                uint64      `gorm:"primaryKey"`
    PlateNumber       int64       `gorm:"not null;uniqueIndex"`
    ContractorID      uint64      `gorm:"not null;index"`
    Contractor        *Contractor `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
    FactoryID         uint64      `gorm:"not null;index"`
    Factory           *Factory    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
    GateID            uint64      `gorm:"not null;index"`
    Gate              *Gate       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
    FactoryCardNumber int64       `gorm:"not null"`
    DeviceCardNumber  int64       `gorm:"not null"`
    RegisteredBy      uint64      `gorm:"not null;index"`
    Registrar         *User       `gorm:"foreignKey:RegisteredBy;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
    Status            TruckStatus `gorm:"type:enum('registered','in_transit','delivered','cancelled');not null;default:registered;index"`
    RegisteredAt      time.Time   `gorm:"not null;index"`
    EditDeadline      time.Time   `gorm:"not null"`
    DeliveredAt       *time.Time
    Notes             string      `gorm:"type:varchar(500);not null;default:''"`
    CanEdit           bool        `gorm:"not null;default:true"`
    CreatedAt         time.Time
    UpdatedAt         time.Time

    // Display names joined on reads.
    ContractorName   string `gorm:"-"`
    FactoryName      string `gorm:"-"`
    GateName         string `gorm:"-"`
    RegisteredByName string `gorm:"-"`
}

// Editable reports whether the registering user may still modify the
// truck at time now. When requireFlag is set the CanEdit flag must also
// be true.
func (t *Truck) Editable(now time.Time, requireFlag bool) bool {
    if requireFlag && !t.CanEdit {
        return false
    }
    return now.Before(t.EditDeadline)
}

// TruckFilter selects trucks for listing. Zero values mean "no filter".
type TruckFilter struct {
    PlateNumber  *int64 // exact plate match
    CardSearch   string // partial match on factory or device card number
    ContractorID uint64
    FactoryID    uint64
    GateID       uint64
    RegisteredBy uint64
    Status       TruckStatus
    From         *time.Time // registered_at >= From
    To           *time.Time // registered_at <= To
    Page         int
    PageSize     int
}

// Offset returns the row offset for the filter's page. It saturates at
// math.MaxInt instead of wrapping.
func (f TruckFilter) Offset() int {
    if f.Page < 1 || f.PageSize < 1 {
        return 0
    }
    if f.Page-1 > math.MaxInt/f.PageSize {
        return math.MaxInt
    }
    return (f.Page - 1) * f.PageSize
}
