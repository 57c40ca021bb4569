package models

import "errors"

var (
	// ErrInvalidCode covers every decode failure: malformed payload, bad
	// signature, failed checksum. Always recoverable by re-scanning.
	ErrInvalidCode = errors.New("invalid code")
	// ErrVoucherNotFound is returned when a decoded code points at a voucher
	// or claim record that does not exist.
	ErrVoucherNotFound = errors.New("voucher not found")
	ErrExpired         = errors.New("voucher expired")
	// ErrAlreadyRedeemed is the idempotency boundary, not a crash condition:
	// concurrent and replayed redemptions land here.
	ErrAlreadyRedeemed  = errors.New("already redeemed")
	ErrInvalidProvider  = errors.New("provider not entitled to redeem")
	ErrCapacityExceeded = errors.New("redemption capacity exceeded")
	// ErrInvalidTransition signals a lifecycle move the state machine forbids.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrNotInitialized is returned when key material is read before the
	// keypair was generated.
	ErrNotInitialized = errors.New("signing key not initialized")
)
