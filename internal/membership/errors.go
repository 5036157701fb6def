package membership

import (
	"errors"
	"time"
)

var (
	// ErrNotAdmin is returned when a non-admin identity invokes an admin operation.
	ErrNotAdmin = errors.New("membership: not admin")
	// ErrNoPending is returned when no pending application exists for the applicant.
	ErrNoPending = errors.New("membership: no pending application")
	// ErrAlreadyMember is returned when a member tries to apply again.
	ErrAlreadyMember = errors.New("membership: already a member")
	// ErrAlreadyPending is returned when an application is already awaiting a decision.
	ErrAlreadyPending = errors.New("membership: application already pending")
	// ErrCooldown is returned while a rejection cooldown is active.
	ErrCooldown = errors.New("membership: cooldown active")
)

// CooldownError carries the remaining cooldown. It matches ErrCooldown with errors.Is.
type CooldownError struct {
	Until     time.Time
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return "membership: cooldown active for " + FormatRemaining(e.Remaining)
}

func (e *CooldownError) Unwrap() error { return ErrCooldown }
