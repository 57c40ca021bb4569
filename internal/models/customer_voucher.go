package models

import (
	"time"

	"github.com/google/uuid"
)

type CustomerVoucherStatus string

const (
	CustomerVoucherClaimed  CustomerVoucherStatus = "CLAIMED"
	CustomerVoucherRedeemed CustomerVoucherStatus = "REDEEMED"
	CustomerVoucherExpired  CustomerVoucherStatus = "EXPIRED"
)

// CustomerVoucher is a customer's claim on a voucher — the wallet entry a
// redemption consumes. CLAIMED -> REDEEMED and CLAIMED -> EXPIRED are both
// terminal and one-way.
type CustomerVoucher struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	VoucherID  uuid.UUID
	ClaimedAt  time.Time
	Status     CustomerVoucherStatus
	RedeemedAt *time.Time
}

// MarkRedeemed is the single place the CLAIMED -> REDEEMED transition is
// enforced. It returns the taxonomy error matching the current terminal state
// so callers can map it straight to a result code.
func (cv *CustomerVoucher) MarkRedeemed(at time.Time) error {
	switch cv.Status {
	case CustomerVoucherClaimed:
		cv.Status = CustomerVoucherRedeemed
		cv.RedeemedAt = &at
		return nil
	case CustomerVoucherRedeemed:
		return ErrAlreadyRedeemed
	case CustomerVoucherExpired:
		return ErrExpired
	default:
		return ErrInvalidTransition
	}
}

// MarkExpired expires a claim whose validity window passed. Redeemed claims
// stay redeemed.
func (cv *CustomerVoucher) MarkExpired() error {
	switch cv.Status {
	case CustomerVoucherClaimed:
		cv.Status = CustomerVoucherExpired
		return nil
	case CustomerVoucherExpired:
		return nil
	default:
		return ErrInvalidTransition
	}
}
