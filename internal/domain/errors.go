package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRecordNotFound     = errors.New("record not found")
	ErrEditConflict       = errors.New("edit conflict")
	ErrVerificationFailed = errors.New("seat locks could not be verified, please try again")
	ErrStaleLockExpired   = errors.New("your seat selections have expired, please select your seats again")
	ErrPaymentDeclined    = errors.New("payment was declined and your seats have been released")
	ErrStoreUnavailable   = errors.New("the booking store is temporarily unavailable")
	ErrInvalidTransition  = errors.New("booking is not in a state that allows this operation")
	ErrPartySizeMismatch  = errors.New("the number of selected seats must match the party size")
)

// SeatConflictError names the exact seats another booking holds, so the
// caller can explain which seats were lost instead of failing opaquely.
type SeatConflictError struct {
	Seats []string
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seat(s) already taken: %s", strings.Join(e.Seats, ", "))
}
