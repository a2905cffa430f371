package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidAccount   = errors.New("invalid account configuration")
	ErrDuplicateAccount = errors.New("account already exists")
	ErrUnknownAccount   = errors.New("unknown account")
	ErrPersistence      = errors.New("persistence failure")
	ErrStateNotFound    = errors.New("state not found")
)

// PersistenceError reports a durable log append that did not complete.
// Record is the transaction the append was attempted for.
type PersistenceError struct {
	AccountID  string
	Record     Record
	RolledBack bool
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("appending transaction %s to log of %q: %v", e.Record.ID, e.AccountID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
