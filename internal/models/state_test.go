package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoucherStateForwardOnly(t *testing.T) {
	v := &Voucher{State: VoucherStateNew}

	require.NoError(t, v.TransitionState(VoucherStatePublished))
	require.NoError(t, v.TransitionState(VoucherStateExpired))

	assert.ErrorIs(t, v.TransitionState(VoucherStatePublished), ErrInvalidTransition)
	assert.ErrorIs(t, v.TransitionState(VoucherStateNew), ErrInvalidTransition)
	assert.Equal(t, VoucherStateExpired, v.State)
}

func TestVoucherStateSkipAhead(t *testing.T) {
	v := &Voucher{State: VoucherStateNew}
	require.NoError(t, v.TransitionState(VoucherStateExpired))
	assert.ErrorIs(t, v.TransitionState(VoucherStatePublished), ErrInvalidTransition)
}

func TestCustomerVoucherRedeemOnce(t *testing.T) {
	cv := &CustomerVoucher{Status: CustomerVoucherClaimed}
	at := time.Now()

	require.NoError(t, cv.MarkRedeemed(at))
	require.Equal(t, CustomerVoucherRedeemed, cv.Status)
	require.NotNil(t, cv.RedeemedAt)
	assert.Equal(t, at, *cv.RedeemedAt)

	assert.ErrorIs(t, cv.MarkRedeemed(at), ErrAlreadyRedeemed)
	assert.ErrorIs(t, cv.MarkExpired(), ErrInvalidTransition)
}

func TestCustomerVoucherExpiredIsTerminal(t *testing.T) {
	cv := &CustomerVoucher{Status: CustomerVoucherClaimed}
	require.NoError(t, cv.MarkExpired())

	assert.ErrorIs(t, cv.MarkRedeemed(time.Now()), ErrExpired)
	assert.NoError(t, cv.MarkExpired()) // expiring twice is a no-op
	assert.Nil(t, cv.RedeemedAt)
}

func TestVoucherCapacity(t *testing.T) {
	v := &Voucher{CurrentRedemptions: 3}
	assert.True(t, v.CapacityLeft(), "uncapped voucher always has capacity")

	limit := 3
	v.MaxRedemptions = &limit
	assert.False(t, v.CapacityLeft())

	v.CurrentRedemptions = 2
	assert.True(t, v.CapacityLeft())
}

func TestVoucherWindow(t *testing.T) {
	now := time.Now()
	v := &Voucher{ValidFrom: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour)}

	assert.True(t, v.WindowOpen(now))
	assert.False(t, v.WindowOpen(now.Add(-2*time.Hour)))
	assert.False(t, v.WindowOpen(now.Add(2*time.Hour)))
	assert.True(t, v.WindowOpen(v.ExpiresAt), "window is inclusive of the expiry instant")
}

func TestFailureCodeFor(t *testing.T) {
	fc, ok := FailureCodeFor(ErrCapacityExceeded)
	require.True(t, ok)
	assert.Equal(t, FailureCapacityExceeded, fc)

	_, ok = FailureCodeFor(ErrInvalidTransition)
	assert.False(t, ok, "structural errors carry no business classification")
}
