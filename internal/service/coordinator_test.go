package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promoworks/voucher-redemption-service/internal/models"
	"github.com/promoworks/voucher-redemption-service/internal/service"
	"github.com/promoworks/voucher-redemption-service/internal/token"
)

func TestRedeemSuccess(t *testing.T) {
	f := newFixture(t)
	voucher := f.seedVoucher(voucherOpts{})
	customerID := uuid.New()
	cv := f.seedClaim(voucher.ID, customerID)
	payload := f.issueWalletQR(t, voucher.ID, customerID)

	res, err := f.coordinator.Redeem(context.Background(), service.RedeemRequest{
		Code:       payload,
		ProviderID: f.providerID,
		DeviceID:   "pos-7",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, res.Redemption)
	assert.Equal(t, customerID, res.Redemption.CustomerID)
	assert.Equal(t, f.now, res.Redemption.RedeemedAt)
	assert.False(t, res.Redemption.Offline)

	snap, _ := f.store.ClaimSnapshot(cv.ID)
	assert.Equal(t, models.CustomerVoucherRedeemed, snap.Status)
	require.NotNil(t, snap.RedeemedAt)
	vsnap, _ := f.store.VoucherSnapshot(voucher.ID)
	assert.Equal(t, 1, vsnap.CurrentRedemptions)
	assert.Equal(t, 1, f.store.RedemptionCount())
}

func TestRedeemTwiceReportsAlreadyRedeemed(t *testing.T) {
	f := newFixture(t)
	voucher := f.seedVoucher(voucherOpts{})
	customerID := uuid.New()
	f.seedClaim(voucher.ID, customerID)
	payload := f.issueWalletQR(t, voucher.ID, customerID)

	req := service.RedeemRequest{Code: payload, ProviderID: f.providerID}
	first, err := f.coordinator.Redeem(context.Background(), req)
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := f.coordinator.Redeem(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Equal(t, models.FailureAlreadyRedeemed, second.Code)
	assert.Equal(t, 1, f.store.RedemptionCount())
}

func TestRedeemConcurrentExactlyOnce(t *testing.T) {
	f := newFixture(t)
	voucher := f.seedVoucher(voucherOpts{})
	customerID := uuid.New()
	f.seedClaim(voucher.ID, customerID)
	payload := f.issueWalletQR(t, voucher.ID, customerID)

	const attempts = 32
	results := make([]models.RedemptionResult, attempts)
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.coordinator.Redeem(context.Background(), service.RedeemRequest{
				Code:       payload,
				ProviderID: f.providerID,
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for i := 0; i < attempts; i++ {
		require.NoError(t, errs[i])
		if results[i].Success {
			wins++
		} else {
			assert.Equal(t, models.FailureAlreadyRedeemed, results[i].Code)
		}
	}
	assert.Equal(t, 1, wins, "exactly one attempt may win the race")
	assert.Equal(t, 1, f.store.RedemptionCount())
	vsnap, _ := f.store.VoucherSnapshot(voucher.ID)
	assert.Equal(t, 1, vsnap.CurrentRedemptions)
}

func TestRedeemCapacityAcrossCustomers(t *testing.T) {
	f := newFixture(t)
	voucher := f.seedVoucher(voucherOpts{maxRed: ptr(1)})
	alice, bob := uuid.New(), uuid.New()
	f.seedClaim(voucher.ID, alice)
	f.seedClaim(voucher.ID, bob)

	first, err := f.coordinator.Redeem(context.Background(), service.RedeemRequest{
		Code:       f.issueWalletQR(t, voucher.ID, alice),
		ProviderID: f.providerID,
	})
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := f.coordinator.Redeem(context.Background(), service.RedeemRequest{
		Code:       f.issueWalletQR(t, voucher.ID, bob),
		ProviderID: f.providerID,
	})
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Equal(t, models.FailureCapacityExceeded, second.Code)
}

func TestRedeemWithoutResolvableCustomer(t *testing.T) {
	f := newFixture(t)
	voucher := f.seedVoucher(voucherOpts{})

	payload, err := f.issuer.IssueQR(context.Background(), voucher.ID, f.providerID, token.QROptions{})
	require.NoError(t, err)

	res, err := f.coordinator.Redeem(context.Background(), service.RedeemRequest{
		Code:       payload,
		ProviderID: f.providerID,
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, models.FailureVoucherNotFound, res.Code)
	assert.Zero(t, f.store.RedemptionCount())
}

func TestRedeemValidationFailureDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	voucher := f.seedVoucher(voucherOpts{})
	customerID := uuid.New()
	cv := f.seedClaim(voucher.ID, customerID)
	payload := f.issueWalletQR(t, voucher.ID, customerID)

	res, err := f.coordinator.Redeem(context.Background(), service.RedeemRequest{
		Code:       payload,
		ProviderID: uuid.New(), // not the bound provider
	})
	require.NoError(t, err)
	assert.Equal(t, models.FailureInvalidProvider, res.Code)

	snap, _ := f.store.ClaimSnapshot(cv.ID)
	assert.Equal(t, models.CustomerVoucherClaimed, snap.Status)
	assert.Zero(t, f.store.RedemptionCount())
}

type failingObserver struct{ calls int }

func (o *failingObserver) Observe(context.Context, *models.Redemption) (*models.FraudCase, error) {
	o.calls++
	return nil, errors.New("scoring backend down")
}

func TestRedeemSurvivesFraudObserverFailure(t *testing.T) {
	f := newFixture(t)
	observer := &failingObserver{}
	f.withFraud(observer)

	voucher := f.seedVoucher(voucherOpts{})
	customerID := uuid.New()
	f.seedClaim(voucher.ID, customerID)

	res, err := f.coordinator.Redeem(context.Background(), service.RedeemRequest{
		Code:       f.issueWalletQR(t, voucher.ID, customerID),
		ProviderID: f.providerID,
	})
	require.NoError(t, err)
	assert.True(t, res.Success, "fraud review never blocks a redemption")
	assert.Equal(t, 1, observer.calls)
}
