package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// FailureCode classifies a rejected validation or redemption so redemption
// UIs can render a specific message per kind.
type FailureCode string

const (
	FailureInvalidCode      FailureCode = "INVALID_CODE"
	FailureExpired          FailureCode = "EXPIRED"
	FailureAlreadyRedeemed  FailureCode = "ALREADY_REDEEMED"
	FailureVoucherNotFound  FailureCode = "VOUCHER_NOT_FOUND"
	FailureInvalidProvider  FailureCode = "INVALID_PROVIDER"
	FailureCapacityExceeded FailureCode = "CAPACITY_EXCEEDED"
)

// FailureCodeFor maps a taxonomy sentinel to its result code. The second
// return is false for structural errors that have no business classification.
func FailureCodeFor(err error) (FailureCode, bool) {
	switch {
	case errors.Is(err, ErrInvalidCode):
		return FailureInvalidCode, true
	case errors.Is(err, ErrExpired):
		return FailureExpired, true
	case errors.Is(err, ErrAlreadyRedeemed):
		return FailureAlreadyRedeemed, true
	case errors.Is(err, ErrVoucherNotFound):
		return FailureVoucherNotFound, true
	case errors.Is(err, ErrInvalidProvider):
		return FailureInvalidProvider, true
	case errors.Is(err, ErrCapacityExceeded):
		return FailureCapacityExceeded, true
	}
	return "", false
}

// ValidationResult is the side-effect-free decision returned by the
// validator. On success it carries enough context for a confirmation screen.
type ValidationResult struct {
	Valid           bool        `json:"valid"`
	Code            FailureCode `json:"code,omitempty"`
	Message         string      `json:"message,omitempty"`
	Voucher         *Voucher    `json:"-"`
	Provider        *Provider   `json:"-"`
	CustomerVoucher *CustomerVoucher
	// CustomerKnown is false when the presented code carries no customer
	// binding and no customer context was supplied; a redeem call then needs
	// an explicit customer.
	CustomerKnown bool
}

// RedemptionResult reports the outcome of a redeem attempt.
type RedemptionResult struct {
	Success    bool        `json:"success"`
	Code       FailureCode `json:"code,omitempty"`
	Message    string      `json:"message,omitempty"`
	Redemption *Redemption `json:"-"`
}

// OfflineItem is one redemption attempt captured while the device was
// disconnected. RedeemedAt is client-reported and trusted only for replay
// ordering.
type OfflineItem struct {
	Code       string     `json:"code"`
	RedeemedAt time.Time  `json:"redeemed_at"`
	Location   *GeoPoint  `json:"location,omitempty"`
	DeviceID   string     `json:"device_id,omitempty"`
	CustomerID *uuid.UUID `json:"customer_id,omitempty"`
}

// OfflineItemResult is the per-item outcome of a batch sync. Sequence is the
// position in replay order, kept for audit of client-supplied timestamps.
type OfflineItemResult struct {
	Code         string      `json:"code"`
	Sequence     int         `json:"sequence"`
	Success      bool        `json:"success"`
	FailureCode  FailureCode `json:"failure_code,omitempty"`
	RedemptionID *uuid.UUID  `json:"redemption_id,omitempty"`
}
