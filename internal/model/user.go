package model

import "time"

// User represents an account as stored in the `users` table. Admins
// manage reference data and users; military users register trucks at
// the gate they are assigned to.
//
// Fields:
//  ID           – primary key identifier.
//  Email        – unique, stored lower-cased.
//  PasswordHash – bcrypt hash, never serialized.
//  Name         – display name.
//  Role         – admin or military.
//  GateID       – assigned gate, required for military users.
//  IsActive     – disabled users cannot log in or use existing tokens.
//  LastLoginAt  – time of the last successful login (nullable).
type User struct {
    ID           uint64     `gorm:"primaryKey"`
    Email        string     `gorm:"type:varchar(191);not null;uniqueIndex"`
    PasswordHash string     `gorm:"type:varchar(255);not null"`
    Name         string     `gorm:"type:varchar(100);not null"`
    Role         Role       `gorm:"type:enum('admin','military');not null;default:military"`
    GateID       *uint64    `gorm:"index"`
    Gate         *Gate      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
    IsActive     bool       `gorm:"not null;default:true"`
    LastLoginAt  *time.Time
    CreatedAt    time.Time
    UpdatedAt    time.Time

    GateName string `gorm:"-"` // joined from gates.name on reads
}

// HasGate reports whether the user is assigned to a gate.
func (u *User) HasGate() bool { return u.GateID != nil && *u.GateID != 0 }
