package outbuf

import (
	"errors"
	"fmt"
)

// Contract violations. They reach the caller wrapped in a ContractError panic.
var (
	// ErrUnknownFragment: id tidak pernah dibuat oleh builder ini.
	ErrUnknownFragment = errors.New("unknown fragment")
	// ErrFragmentFinished: penulisan ke fragment yang sudah di-finish.
	ErrFragmentFinished = errors.New("fragment already finished")
	// ErrClosed: operasi setelah Close.
	ErrClosed = errors.New("builder closed")
)

// ErrCorruptBlock is returned when a scratch block does not match the checksum
// recorded when it was written.
var ErrCorruptBlock = errors.New("corrupted scratch block")

// ContractError describes a caller bug. Builders panic with it; it is never
// returned as an ordinary error.
type ContractError struct {
	Op  string
	ID  FragmentID
	Err error
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("outbuf: %s fragment %d: %v", e.Op, e.ID, e.Err)
}

func (e *ContractError) Unwrap() error { return e.Err }

func violation(op string, id FragmentID, err error) {
	panic(&ContractError{Op: op, ID: id, Err: err})
}
