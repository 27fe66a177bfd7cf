package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrUnsupportedTier   = errors.New("unsupported tier")
	ErrProviderFailure   = errors.New("provider failure")
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrCredentialNotFound matches ErrNotFound through errors.Is.
	ErrCredentialNotFound = fmt.Errorf("download credential %w", ErrNotFound)
	ErrCredentialConsumed = errors.New("download credential already consumed")
	ErrCredentialMismatch = errors.New("download credential mismatch")
)

// QuotaExceededError reports the limit an owner ran into.
type QuotaExceededError struct {
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: limit of %d jobs reached", e.Limit)
}

func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}
