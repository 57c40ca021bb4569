package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promoworks/voucher-redemption-service/internal/models"
)

func TestReconcileEmptyBatch(t *testing.T) {
	f := newFixture(t)
	_, err := f.reconciler.Reconcile(context.Background(), f.providerID, nil, nil)
	assert.Error(t, err)
}

func TestReconcileReplaysInCaptureOrder(t *testing.T) {
	f := newFixture(t)
	voucher := f.seedVoucher(voucherOpts{maxRed: ptr(1)})
	alice, bob := uuid.New(), uuid.New()
	f.seedClaim(voucher.ID, alice)
	f.seedClaim(voucher.ID, bob)

	captured := f.now.Add(-time.Hour)
	// Submitted out of order: bob's later capture first.
	items := []models.OfflineItem{
		{Code: f.issueWalletQR(t, voucher.ID, bob), RedeemedAt: captured.Add(10 * time.Minute), DeviceID: "pos-3"},
		{Code: f.issueWalletQR(t, voucher.ID, alice), RedeemedAt: captured, DeviceID: "pos-3"},
	}

	results, err := f.reconciler.Reconcile(context.Background(), f.providerID, nil, items)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Alice captured first, so her item replays first and takes the last slot.
	assert.Equal(t, 0, results[0].Sequence)
	assert.True(t, results[0].Success)
	assert.Equal(t, items[1].Code, results[0].Code)

	assert.Equal(t, 1, results[1].Sequence)
	assert.False(t, results[1].Success)
	assert.Equal(t, models.FailureCapacityExceeded, results[1].FailureCode)
}

func TestReconcileRecordsClientTimestamp(t *testing.T) {
	f := newFixture(t)
	voucher := f.seedVoucher(voucherOpts{})
	customerID := uuid.New()
	f.seedClaim(voucher.ID, customerID)

	captured := f.now.Add(-3 * time.Hour)
	operatorID := uuid.New()
	results, err := f.reconciler.Reconcile(context.Background(), f.providerID, &operatorID, []models.OfflineItem{
		{
			Code:       f.issueWalletQR(t, voucher.ID, customerID),
			RedeemedAt: captured,
			DeviceID:   "pos-9",
			Location:   &models.GeoPoint{Lat: 52.52, Lng: 13.40},
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	require.NotNil(t, results[0].RedemptionID)

	// The stored row carries the capture time, not the sync time.
	hist, err := f.store.RecentByCustomer(context.Background(), customerID, captured.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, captured, hist[0].RedeemedAt)
	assert.True(t, hist[0].Offline)
	assert.Equal(t, "pos-9", hist[0].DeviceID)
	require.NotNil(t, hist[0].OperatorID)
	assert.Equal(t, operatorID, *hist[0].OperatorID)
}

func TestReconcileResubmissionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	voucher := f.seedVoucher(voucherOpts{})
	customerID := uuid.New()
	f.seedClaim(voucher.ID, customerID)

	items := []models.OfflineItem{
		{Code: f.issueWalletQR(t, voucher.ID, customerID), RedeemedAt: f.now.Add(-time.Hour), DeviceID: "pos-1"},
	}

	first, err := f.reconciler.Reconcile(context.Background(), f.providerID, nil, items)
	require.NoError(t, err)
	require.True(t, first[0].Success)

	second, err := f.reconciler.Reconcile(context.Background(), f.providerID, nil, items)
	require.NoError(t, err)
	assert.False(t, second[0].Success)
	assert.Equal(t, models.FailureAlreadyRedeemed, second[0].FailureCode)
	assert.Equal(t, 1, f.store.RedemptionCount())
}

func TestReconcileMixedBatch(t *testing.T) {
	f := newFixture(t)
	voucher := f.seedVoucher(voucherOpts{})
	customerID := uuid.New()
	f.seedClaim(voucher.ID, customerID)

	expired := f.seedVoucher(voucherOpts{expiresAt: f.now.Add(-time.Hour)})
	expiredCustomer := uuid.New()
	f.seedClaim(expired.ID, expiredCustomer)

	base := f.now.Add(-2 * time.Hour)
	items := []models.OfflineItem{
		{Code: f.issueWalletQR(t, voucher.ID, customerID), RedeemedAt: base, DeviceID: "pos-2"},
		{Code: "", RedeemedAt: base.Add(time.Minute), DeviceID: "pos-2"},
		{Code: f.issueWalletQR(t, expired.ID, expiredCustomer), RedeemedAt: base.Add(2 * time.Minute), DeviceID: "pos-2"},
		{Code: "garbage-code", RedeemedAt: base.Add(3 * time.Minute), DeviceID: "pos-2"},
	}

	results, err := f.reconciler.Reconcile(context.Background(), f.providerID, nil, items)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.True(t, results[0].Success)
	assert.Equal(t, models.FailureInvalidCode, results[1].FailureCode)
	assert.Equal(t, models.FailureExpired, results[2].FailureCode)
	assert.Equal(t, models.FailureInvalidCode, results[3].FailureCode)

	for i, res := range results {
		assert.Equal(t, i, res.Sequence)
	}
	assert.Equal(t, 1, f.store.RedemptionCount())
}
