package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Voucher lifecycle states. Transitions only move forward:
// NEW -> PUBLISHED -> EXPIRED.
type VoucherState string

const (
	VoucherStateNew       VoucherState = "NEW"
	VoucherStatePublished VoucherState = "PUBLISHED"
	VoucherStateExpired   VoucherState = "EXPIRED"
)

var voucherStateRank = map[VoucherState]int{
	VoucherStateNew:       0,
	VoucherStatePublished: 1,
	VoucherStateExpired:   2,
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFlat       DiscountType = "flat"
)

type Voucher struct {
	ID                    uuid.UUID
	ProviderID            uuid.UUID
	Category              string
	Title                 string
	State                 VoucherState
	DiscountType          DiscountType
	DiscountValue         decimal.Decimal
	ValidFrom             time.Time
	ExpiresAt             time.Time
	MaxRedemptions        *int // nil = unlimited
	MaxRedemptionsPerUser int
	CurrentRedemptions    int
	Terms                 string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// TransitionState enforces the forward-only voucher lifecycle. Administrative
// overrides happen outside this core and do not go through here.
func (v *Voucher) TransitionState(next VoucherState) error {
	nextRank, ok := voucherStateRank[next]
	if !ok {
		return ErrInvalidTransition
	}
	if nextRank <= voucherStateRank[v.State] {
		return ErrInvalidTransition
	}
	v.State = next
	return nil
}

// WindowOpen reports whether now falls inside the validity window.
func (v *Voucher) WindowOpen(now time.Time) bool {
	if now.Before(v.ValidFrom) {
		return false
	}
	return !now.After(v.ExpiresAt)
}

// CapacityLeft reports whether the global redemption cap still has room.
// Uncapped vouchers always have capacity.
func (v *Voucher) CapacityLeft() bool {
	if v.MaxRedemptions == nil {
		return true
	}
	return v.CurrentRedemptions < *v.MaxRedemptions
}
