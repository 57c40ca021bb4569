package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/promoworks/voucher-redemption-service/internal/cache"
	"github.com/promoworks/voucher-redemption-service/internal/models"
	"github.com/promoworks/voucher-redemption-service/internal/token"
)

// Stores required by the validation path (interfaces so tests can substitute
// in-memory implementations).

// VoucherStore is the read-only view of voucher state the validator needs.
// Lookups return (nil, nil) when the record does not exist.
type VoucherStore interface {
	VoucherByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error)
	VoucherCodeByCode(ctx context.Context, code string) (*models.VoucherCode, error)
	CustomerVoucher(ctx context.Context, voucherID, customerID uuid.UUID) (*models.CustomerVoucher, error)
}

// ProviderDirectory resolves provider display info. Provider legitimacy is
// the directory's problem; this core only reads.
type ProviderDirectory interface {
	Provider(ctx context.Context, id uuid.UUID) (*models.Provider, error)
}

// Validator decides whether a presented code may be redeemed right now. It
// never mutates anything, so preview flows can call it as often as they like.
type Validator struct {
	tokens    *token.Issuer
	store     VoucherStore
	providers ProviderDirectory
	vouchers  cache.VoucherCache // optional, nil disables caching
	now       func() time.Time
}

func NewValidator(tokens *token.Issuer, store VoucherStore, providers ProviderDirectory, vouchers cache.VoucherCache) *Validator {
	return &Validator{
		tokens:    tokens,
		store:     store,
		providers: providers,
		vouchers:  vouchers,
		now:       time.Now,
	}
}

var failureMessages = map[models.FailureCode]string{
	models.FailureInvalidCode:      "invalid_code",
	models.FailureExpired:          "voucher_expired",
	models.FailureAlreadyRedeemed:  "already_redeemed",
	models.FailureVoucherNotFound:  "voucher_not_found",
	models.FailureInvalidProvider:  "invalid_provider",
	models.FailureCapacityExceeded: "capacity_exceeded",
}

func rejected(code models.FailureCode) models.ValidationResult {
	return models.ValidationResult{Valid: false, Code: code, Message: failureMessages[code]}
}

// Validate runs the full decision ladder for a presented code:
// decode/verify, resolve voucher and claim, then window, capacity, claim
// state and provider binding. The returned error is only ever structural
// (store failure); every business outcome is a typed result.
func (v *Validator) Validate(ctx context.Context, rawCode string, providerID uuid.UUID, customerID *uuid.UUID) (models.ValidationResult, error) {
	now := v.now().UTC()

	var (
		voucherID     uuid.UUID
		boundProvider *uuid.UUID
		claimCustomer *uuid.UUID
	)

	if looksLikeQRPayload(rawCode) {
		claims, err := v.tokens.DecodeQR(rawCode)
		if err != nil {
			fc, _ := models.FailureCodeFor(err)
			return rejected(fc), nil
		}
		voucherID = uuid.MustParse(claims.VoucherID)
		pid := uuid.MustParse(claims.ProviderID)
		boundProvider = &pid
		if claims.CustomerID != "" {
			cid, err := uuid.Parse(claims.CustomerID)
			if err != nil {
				return rejected(models.FailureInvalidCode), nil
			}
			claimCustomer = &cid
		}
	} else {
		canonical, err := v.tokens.VerifyShortCode(rawCode)
		if err != nil {
			return rejected(models.FailureInvalidCode), nil
		}
		vc, err := v.store.VoucherCodeByCode(ctx, canonical)
		if err != nil {
			return models.ValidationResult{}, fmt.Errorf("look up code: %w", err)
		}
		if vc == nil {
			return rejected(models.FailureVoucherNotFound), nil
		}
		if !vc.IsActive {
			return rejected(models.FailureInvalidCode), nil
		}
		if !vc.ExpiresAt.IsZero() && now.After(vc.ExpiresAt) {
			return rejected(models.FailureExpired), nil
		}
		voucherID = vc.VoucherID
	}

	voucher, err := v.lookupVoucher(ctx, voucherID)
	if err != nil {
		return models.ValidationResult{}, err
	}
	if voucher == nil || voucher.State == models.VoucherStateNew {
		// Unpublished vouchers are indistinguishable from missing ones on
		// purpose: codes must not leak upcoming inventory.
		return rejected(models.FailureVoucherNotFound), nil
	}

	if voucher.State == models.VoucherStateExpired || !voucher.WindowOpen(now) {
		return rejected(models.FailureExpired), nil
	}

	// Customer claim checks come before the capacity check so a redeemed
	// claim reports the more specific ALREADY_REDEEMED.
	effectiveCustomer := customerID
	if effectiveCustomer == nil {
		effectiveCustomer = claimCustomer
	}
	var claim *models.CustomerVoucher
	if effectiveCustomer != nil {
		claim, err = v.store.CustomerVoucher(ctx, voucherID, *effectiveCustomer)
		if err != nil {
			return models.ValidationResult{}, fmt.Errorf("look up claim: %w", err)
		}
		if claim == nil {
			return rejected(models.FailureVoucherNotFound), nil
		}
		switch claim.Status {
		case models.CustomerVoucherExpired:
			return rejected(models.FailureExpired), nil
		case models.CustomerVoucherRedeemed:
			return rejected(models.FailureAlreadyRedeemed), nil
		}
	}

	if !voucher.CapacityLeft() {
		return rejected(models.FailureCapacityExceeded), nil
	}

	// Short and static codes carry no provider binding, so only QR payloads
	// can fail this check.
	if boundProvider != nil && *boundProvider != providerID {
		return rejected(models.FailureInvalidProvider), nil
	}

	result := models.ValidationResult{
		Valid:           true,
		Message:         "redeemable",
		Voucher:         voucher,
		CustomerVoucher: claim,
		CustomerKnown:   effectiveCustomer != nil,
	}
	// Display info only; a directory hiccup must not fail an otherwise valid
	// scan.
	if provider, perr := v.providers.Provider(ctx, providerID); perr == nil {
		result.Provider = provider
	}
	return result, nil
}

func (v *Validator) lookupVoucher(ctx context.Context, id uuid.UUID) (*models.Voucher, error) {
	if v.vouchers != nil {
		if cached := v.vouchers.Get(ctx, id); cached != nil {
			return cached, nil
		}
	}
	voucher, err := v.store.VoucherByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("look up voucher: %w", err)
	}
	if voucher != nil && v.vouchers != nil {
		v.vouchers.Set(ctx, voucher)
	}
	return voucher, nil
}

// WithClock overrides the validator's time source for tests.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// looksLikeQRPayload distinguishes the two artifact shapes: QR payloads are
// compact JWTs (two dots), short codes never contain one.
func looksLikeQRPayload(code string) bool {
	return strings.Count(code, ".") == 2
}
