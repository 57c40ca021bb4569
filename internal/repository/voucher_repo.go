package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/promoworks/voucher-redemption-service/internal/models"
)

// VoucherRepo reads voucher, code and claim records and persists freshly
// issued codes. All mutation of redemption state goes through RedemptionRepo.
type VoucherRepo struct {
	db *sql.DB
}

func NewVoucherRepo(db *sql.DB) *VoucherRepo {
	return &VoucherRepo{db: db}
}

func (r *VoucherRepo) VoucherByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error) {
	query := `
		SELECT id, provider_id, category, title, state, discount_type, discount_value,
		       valid_from, expires_at, max_redemptions, max_redemptions_per_user,
		       current_redemptions, terms, created_at, updated_at
		FROM vouchers
		WHERE id = $1
	`

	var (
		v      models.Voucher
		maxRed sql.NullInt64
		terms  sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&v.ID,
		&v.ProviderID,
		&v.Category,
		&v.Title,
		&v.State,
		&v.DiscountType,
		&v.DiscountValue,
		&v.ValidFrom,
		&v.ExpiresAt,
		&maxRed,
		&v.MaxRedemptionsPerUser,
		&v.CurrentRedemptions,
		&terms,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("voucher by id: %w", err)
	}
	if maxRed.Valid {
		m := int(maxRed.Int64)
		v.MaxRedemptions = &m
	}
	v.Terms = terms.String
	return &v, nil
}

func (r *VoucherRepo) VoucherCodeByCode(ctx context.Context, code string) (*models.VoucherCode, error) {
	query := `
		SELECT id, voucher_id, type, code, batch_id, is_active, expires_at, created_at
		FROM voucher_codes
		WHERE code = $1
	`

	var (
		vc      models.VoucherCode
		batchID sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&vc.ID,
		&vc.VoucherID,
		&vc.Type,
		&vc.Code,
		&batchID,
		&vc.IsActive,
		&vc.ExpiresAt,
		&vc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("voucher code by code: %w", err)
	}
	vc.BatchID = batchID.String
	return &vc, nil
}

// CustomerVoucher returns the claim a redemption would consume: the oldest
// still-CLAIMED entry, or failing that the latest terminal one so callers can
// report the right failure.
func (r *VoucherRepo) CustomerVoucher(ctx context.Context, voucherID, customerID uuid.UUID) (*models.CustomerVoucher, error) {
	query := `
		SELECT id, customer_id, voucher_id, claimed_at, status, redeemed_at
		FROM customer_vouchers
		WHERE voucher_id = $1 AND customer_id = $2
		ORDER BY CASE WHEN status = 'CLAIMED' THEN 0 ELSE 1 END, claimed_at
		LIMIT 1
	`

	var (
		cv         models.CustomerVoucher
		redeemedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, voucherID, customerID).Scan(
		&cv.ID,
		&cv.CustomerID,
		&cv.VoucherID,
		&cv.ClaimedAt,
		&cv.Status,
		&redeemedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("customer voucher: %w", err)
	}
	if redeemedAt.Valid {
		cv.RedeemedAt = &redeemedAt.Time
	}
	return &cv, nil
}

func (r *VoucherRepo) ActiveCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM voucher_codes WHERE code = $1 AND is_active)`
	if err := r.db.QueryRowContext(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("active code exists: %w", err)
	}
	return exists, nil
}

func (r *VoucherRepo) SaveCode(ctx context.Context, vc *models.VoucherCode) error {
	query := `
		INSERT INTO voucher_codes (id, voucher_id, type, code, batch_id, is_active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		vc.ID, vc.VoucherID, vc.Type, vc.Code, vc.BatchID, vc.IsActive, vc.ExpiresAt, vc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save code: %w", err)
	}
	return nil
}
