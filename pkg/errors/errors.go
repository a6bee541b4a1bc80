package relay_errors

import (
	"errors"
)

// Common errors
var (
	ErrEmptyBatch          = errors.New("empty event batch")
	ErrQueueFull           = errors.New("request queue full")
	ErrReservationConflict = errors.New("records already reserved")
	ErrConnection          = errors.New("hiive connection failed")
	ErrInvalidToken        = errors.New("invalid token")
	ErrNoCredential        = errors.New("no stored credential")
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidInput        = errors.New("invalid input")
	ErrServiceUnavailable  = errors.New("service unavailable")
)
