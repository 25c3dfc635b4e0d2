package types

import "errors"

var (
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrCustomerInactive  = errors.New("customer account is inactive")
	ErrStatementNotFound = errors.New("statement not found")
	ErrDuplicatePeriod   = errors.New("statement already exists for period")
	ErrRateLimited       = errors.New("maximum number of active download links reached")
	ErrValidation        = errors.New("validation failed")

	// ErrInvalidToken is returned for a token that does not exist, has
	// expired, or was already used. The three cases are deliberately
	// indistinguishable to the caller.
	ErrInvalidToken = errors.New("invalid or expired download link")

	// ErrTokenExists signals a unique violation on the token value so the
	// issuer can retry with fresh randomness.
	ErrTokenExists = errors.New("download token value already exists")

	ErrStorageUnavailable = errors.New("storage unavailable")
)
