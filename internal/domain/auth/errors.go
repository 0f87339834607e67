package auth

import (
	"errors"
	"fmt"
	"time"
)

// Rejection reasons surfaced to the transport layer. Clients get distinct
// messages for lockout vs bad credentials; token parse details stay internal.
var (
	ErrAccountLocked      = errors.New("account locked")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrTokenMalformed     = errors.New("token malformed")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenSuperseded    = errors.New("token superseded")
)

// LockoutError carries the remaining lock time for client messaging.
type LockoutError struct {
	RetryAfter time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account locked, retry in %d seconds", int(e.RetryAfter.Seconds()))
}

func (e *LockoutError) Is(target error) bool {
	return target == ErrAccountLocked
}

// CredentialError carries the attempts left before lockout.
type CredentialError struct {
	RemainingAttempts int
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("invalid credentials, %d attempts remaining", e.RemainingAttempts)
}

func (e *CredentialError) Is(target error) bool {
	return target == ErrInvalidCredentials
}
