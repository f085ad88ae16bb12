package model

import "strings"

// Role is the closed set of account roles.
type Role string

const (
    RoleAdmin    Role = "admin"
    RoleMilitary Role = "military"
)

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
    r := Role(strings.ToLower(strings.TrimSpace(s)))
    return r, r.Valid()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleMilitary }

func (r Role) String() string { return string(r) }

// Capability names a single operation grant. Every protected operation
// checks exactly one capability instead of comparing role strings.
type Capability uint8

const (
    CapManageReferences Capability = iota + 1
    CapManageUsers
    CapViewAllTrucks
    CapViewStats
    CapRegisterTruck
    CapEditOwnTruck
    CapViewOwnTrucks
    CapTransitionTruck
)

var capabilityNames = map[Capability]string{
    CapManageReferences: "manage_references",
    CapManageUsers:      "manage_users",
    CapViewAllTrucks:    "view_all_trucks",
    CapViewStats:        "view_stats",
    CapRegisterTruck:    "register_truck",
    CapEditOwnTruck:     "edit_own_truck",
    CapViewOwnTrucks:    "view_own_trucks",
    CapTransitionTruck:  "transition_truck",
}

func (c Capability) String() string {
    if s, ok := capabilityNames[c]; ok {
        return s
    }
    return "unknown"
}

// grants is the role to capability table. Admin and military grants are
// disjoint except for status transitions, which both may perform (the
// ledger narrows military users to their own trucks).
var grants = map[Role]map[Capability]bool{
    RoleAdmin: {
        CapManageReferences: true,
        CapManageUsers:      true,
        CapViewAllTrucks:    true,
        CapViewStats:        true,
        CapTransitionTruck:  true,
    },
    RoleMilitary: {
        CapRegisterTruck:   true,
        CapEditOwnTruck:    true,
        CapViewOwnTrucks:   true,
        CapTransitionTruck: true,
    },
}

// Can reports whether role r is granted capability c.
func (r Role) Can(c Capability) bool { return grants[r][c] }
