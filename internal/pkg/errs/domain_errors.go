package errs

import "errors"

// Sentinel errors shared by the command/query layers
var (
	// Booking errors
	ErrBookingNotFound   = errors.New("booking not found")
	ErrBookingConflict   = errors.New("booking time window conflict")
	ErrInvalidTimeWindow = errors.New("invalid time window")
	ErrDurationTooShort  = errors.New("booking duration below minimum")
	ErrDurationTooLong   = errors.New("booking duration above maximum")
	ErrInvalidTransition = errors.New("invalid booking status transition")

	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Validation errors
	ErrDomainValidation = errors.New("domain validation error")

	// Operation errors
	ErrDatabaseOperationFailed = errors.New("database operation failed")
	ErrSchedulingFailed        = errors.New("scheduling failed")
)
