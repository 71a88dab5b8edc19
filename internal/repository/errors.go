// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers to distinguish
// between failure scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrConflict signals a transient write conflict (deadlock, lock wait
// timeout, unique key collision on freshly generated codes). The whole
// operation may be retried from scratch.
var ErrConflict = errors.New("conflict")

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrOrderNotFound    = errors.New("order not found")
)

// ErrTicketUsed is returned when a state change is attempted on a ticket
// that has already admitted its holder.
var ErrTicketUsed = errors.New("ticket already used")

// Capacity scopes reported by CapacityError.
const (
	ScopeCategory = "category"
	ScopeLot      = "lot"
	ScopeEvent    = "event"
)

// CapacityError is returned by a commit whose conditional increment found
// fewer remaining units than requested. Nothing was written.
type CapacityError struct {
	Scope string
	ID    uint64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s %d has insufficient remaining units", e.Scope, e.ID)
}

// MySQL server error numbers that mean "try again".
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// classify maps retryable driver errors to ErrConflict and leaves every
// other error untouched.
func classify(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDuplicateEntry, mysqlLockWaitTimeout, mysqlDeadlock:
			return fmt.Errorf("%w: %s", ErrConflict, me.Message)
		}
	}
	return err
}
