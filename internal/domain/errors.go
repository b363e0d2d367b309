package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidOrder    = errors.New("invalid order parameters")
	ErrLockHeld        = errors.New("lock already held")
	ErrDuplicateEvent  = errors.New("scoring event already processed")
	ErrOrderNotPending = errors.New("order is not pending")
	ErrCircuitOpen     = errors.New("circuit breaker active")
	ErrTradingDisabled = errors.New("trading disabled")
	ErrPositionNotOpen = errors.New("position not open")
	ErrUnknownSport    = errors.New("unknown sport")
	ErrOrderRejected   = errors.New("order rejected")
	ErrCloseInProgress = errors.New("position close in progress")
	ErrExitPending     = errors.New("exit order resting on exchange")
)
