// Package repository defines error types that are reused across multiple
// repositories. Raw driver errors never leave this package for the
// conditions below: unique and foreign key violations are translated into
// sentinels so that services can map them to domain errors without
// parsing MySQL messages.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique
// index (MySQL error 1062).
var ErrDuplicate = errors.New("duplicate key")

// ErrReferenced is returned when a delete or update is blocked by a
// foreign key from another table (MySQL error 1451).
var ErrReferenced = errors.New("row is referenced")

// ErrMissingParent is returned when an insert or update points at a row
// that does not exist (MySQL error 1452).
var ErrMissingParent = errors.New("referenced row does not exist")

// ErrConflict is returned when a conditional update matched no row
// because the stored state changed underneath the caller.
var ErrConflict = errors.New("conflict")

const (
	mysqlDupEntry         = 1062
	mysqlRowIsReferenced  = 1451
	mysqlRowIsReferenced2 = 1217
	mysqlNoReferencedRow  = 1452
	mysqlNoReferencedRow2 = 1216
)

// translate maps driver errors to the sentinels above, keeping the
// original message for logs.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDupEntry:
			return fmt.Errorf("%w: %s", ErrDuplicate, me.Message)
		case mysqlRowIsReferenced, mysqlRowIsReferenced2:
			return fmt.Errorf("%w: %s", ErrReferenced, me.Message)
		case mysqlNoReferencedRow, mysqlNoReferencedRow2:
			return fmt.Errorf("%w: %s", ErrMissingParent, me.Message)
		}
	}
	return err
}
