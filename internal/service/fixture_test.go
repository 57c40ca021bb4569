package service_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/promoworks/voucher-redemption-service/internal/models"
	"github.com/promoworks/voucher-redemption-service/internal/repository"
	"github.com/promoworks/voucher-redemption-service/internal/service"
	"github.com/promoworks/voucher-redemption-service/internal/signing"
	"github.com/promoworks/voucher-redemption-service/internal/token"
)

// fixture wires the full core against the in-memory store with a test clock.
type fixture struct {
	now         time.Time
	store       *repository.MemoryStore
	issuer      *token.Issuer
	validator   *service.Validator
	coordinator *service.Coordinator
	reconciler  *service.Reconciler

	providerID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		now:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		store:      repository.NewMemoryStore(),
		providerID: uuid.New(),
	}
	clock := func() time.Time { return f.now }

	keys := signing.NewKeyManager()
	require.NoError(t, keys.EnsureKeyPair())

	issuer, err := token.NewIssuer(keys, f.store, []byte("service-test-secret"))
	require.NoError(t, err)
	f.issuer = issuer.WithClock(clock)

	f.validator = service.NewValidator(f.issuer, f.store, f.store, nil).WithClock(clock)
	quiet := log.New(io.Discard, "", 0)
	f.coordinator = service.NewCoordinator(f.validator, f.store, nil, nil, quiet).WithClock(clock)
	f.reconciler = service.NewReconciler(f.coordinator)

	f.store.AddProvider(models.Provider{
		ID:       f.providerID,
		Name:     "Cafe Mitte",
		Address:  "Torstr. 1, Berlin",
		Location: &models.GeoPoint{Lat: 52.5297, Lng: 13.4010},
	})
	return f
}

type voucherOpts struct {
	state      models.VoucherState
	expiresAt  time.Time
	maxRed     *int
	maxPerUser int
	current    int
}

func (f *fixture) seedVoucher(opts voucherOpts) models.Voucher {
	if opts.state == "" {
		opts.state = models.VoucherStatePublished
	}
	if opts.expiresAt.IsZero() {
		opts.expiresAt = f.now.Add(30 * 24 * time.Hour)
	}
	if opts.maxPerUser == 0 {
		opts.maxPerUser = 1
	}
	v := models.Voucher{
		ID:                    uuid.New(),
		ProviderID:            f.providerID,
		Category:              "gastronomy",
		Title:                 "2-for-1 lunch",
		State:                 opts.state,
		DiscountType:          models.DiscountPercentage,
		DiscountValue:         decimal.NewFromInt(50),
		ValidFrom:             f.now.Add(-24 * time.Hour),
		ExpiresAt:             opts.expiresAt,
		MaxRedemptions:        opts.maxRed,
		MaxRedemptionsPerUser: opts.maxPerUser,
		CurrentRedemptions:    opts.current,
		CreatedAt:             f.now.Add(-48 * time.Hour),
		UpdatedAt:             f.now.Add(-48 * time.Hour),
	}
	f.store.AddVoucher(v)
	return v
}

func (f *fixture) seedClaim(voucherID, customerID uuid.UUID) models.CustomerVoucher {
	cv := models.CustomerVoucher{
		ID:         uuid.New(),
		CustomerID: customerID,
		VoucherID:  voucherID,
		ClaimedAt:  f.now.Add(-time.Hour),
		Status:     models.CustomerVoucherClaimed,
	}
	f.store.AddClaim(cv)
	return cv
}

// withFraud rebuilds the coordinator with a fraud observer attached.
func (f *fixture) withFraud(observer service.FraudObserver) {
	clock := func() time.Time { return f.now }
	quiet := log.New(io.Discard, "", 0)
	f.coordinator = service.NewCoordinator(f.validator, f.store, nil, observer, quiet).WithClock(clock)
	f.reconciler = service.NewReconciler(f.coordinator)
}

// issueWalletQR issues the payload a customer's wallet would present.
func (f *fixture) issueWalletQR(t *testing.T, voucherID, customerID uuid.UUID) string {
	t.Helper()
	payload, err := f.issuer.IssueQR(context.Background(), voucherID, f.providerID, token.QROptions{CustomerID: &customerID})
	require.NoError(t, err)
	return payload
}

func ptr[T any](v T) *T { return &v }
