package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/promoworks/voucher-redemption-service/internal/cache"
	"github.com/promoworks/voucher-redemption-service/internal/models"
)

// RedemptionStore performs the atomic redemption transition as one unit:
// CLAIMED -> REDEEMED on the claim row, parent counter increment with a
// capacity re-check under lock, and the immutable redemption insert. Losers
// of a race get models.ErrAlreadyRedeemed; capacity exhaustion under lock is
// models.ErrCapacityExceeded. Partially applied state is never observable.
type RedemptionStore interface {
	Redeem(ctx context.Context, p models.RedeemParams) (*models.Redemption, error)
}

// FraudObserver is notified after every committed redemption. Its errors are
// logged and swallowed; fraud review never blocks a redemption.
type FraudObserver interface {
	Observe(ctx context.Context, red *models.Redemption) (*models.FraudCase, error)
}

// RedeemRequest carries one redemption attempt into the coordinator.
type RedeemRequest struct {
	Code       string
	ProviderID uuid.UUID
	CustomerID *uuid.UUID
	OperatorID *uuid.UUID
	Location   *models.GeoPoint
	DeviceID   string
	Offline    bool
	// RedeemedAt is set by offline replay to the client-captured time; online
	// redemptions stamp the server clock.
	RedeemedAt *time.Time
}

// Coordinator validates and then commits redemptions.
type Coordinator struct {
	validator *Validator
	store     RedemptionStore
	vouchers  cache.VoucherCache // optional
	fraud     FraudObserver      // optional
	logger    *log.Logger
	now       func() time.Time
}

func NewCoordinator(validator *Validator, store RedemptionStore, vouchers cache.VoucherCache, fraud FraudObserver, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{
		validator: validator,
		store:     store,
		vouchers:  vouchers,
		fraud:     fraud,
		logger:    logger,
		now:       time.Now,
	}
}

func rejectedRedemption(code models.FailureCode) models.RedemptionResult {
	return models.RedemptionResult{Success: false, Code: code, Message: failureMessages[code]}
}

// Redeem validates the presented code and, on success, performs the atomic
// state transition. Two concurrent attempts against the same claim race
// safely: exactly one wins, the other observes ALREADY_REDEEMED.
func (c *Coordinator) Redeem(ctx context.Context, req RedeemRequest) (models.RedemptionResult, error) {
	vr, err := c.validator.Validate(ctx, req.Code, req.ProviderID, req.CustomerID)
	if err != nil {
		return models.RedemptionResult{}, err
	}
	if !vr.Valid {
		return rejectedRedemption(vr.Code), nil
	}
	if vr.CustomerVoucher == nil {
		// Nothing to transition: the code carries no customer binding and the
		// caller supplied none. The wallet entry is what gets redeemed.
		return rejectedRedemption(models.FailureVoucherNotFound), nil
	}

	redeemedAt := c.now().UTC()
	if req.RedeemedAt != nil {
		redeemedAt = req.RedeemedAt.UTC()
	}

	red, err := c.store.Redeem(ctx, models.RedeemParams{
		CustomerVoucherID: vr.CustomerVoucher.ID,
		VoucherID:         vr.Voucher.ID,
		CustomerID:        vr.CustomerVoucher.CustomerID,
		ProviderID:        req.ProviderID,
		OperatorID:        req.OperatorID,
		RedeemedAt:        redeemedAt,
		Location:          req.Location,
		DeviceID:          req.DeviceID,
		Offline:           req.Offline,
	})
	if err != nil {
		if fc, ok := models.FailureCodeFor(err); ok {
			return rejectedRedemption(fc), nil
		}
		return models.RedemptionResult{}, fmt.Errorf("redeem: %w", err)
	}

	if c.vouchers != nil {
		c.vouchers.Invalidate(ctx, vr.Voucher.ID)
	}
	if c.fraud != nil {
		if _, ferr := c.fraud.Observe(ctx, red); ferr != nil {
			c.logger.Printf("fraud observe redemption %s: %v", red.ID, ferr)
		}
	}

	return models.RedemptionResult{
		Success:    true,
		Message:    "redeemed",
		Redemption: red,
	}, nil
}

// WithClock overrides the coordinator's time source for tests.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}
