package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/promoworks/voucher-redemption-service/internal/models"
)

const pqUniqueViolation = "23505"

// RedemptionRepo owns the atomic redemption transition and the read side of
// redemption history.
type RedemptionRepo struct {
	db *sql.DB
}

func NewRedemptionRepo(db *sql.DB) *RedemptionRepo {
	return &RedemptionRepo{db: db}
}

// Redeem performs the whole transition in one serializable transaction: lock
// the claim row and its parent voucher, re-check the terminal-state and
// capacity invariants under the lock, then flip the claim, bump the counter
// and insert the redemption. Exactly one of two concurrent callers commits;
// the loser sees ErrAlreadyRedeemed. A unique index on
// redemptions(customer_voucher_id) backstops the row-level check.
func (r *RedemptionRepo) Redeem(ctx context.Context, p models.RedeemParams) (*models.Redemption, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin redeem tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock the claim first; it is the row two concurrent redeemers contend on.
	var status models.CustomerVoucherStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM customer_vouchers WHERE id = $1 FOR UPDATE`,
		p.CustomerVoucherID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrVoucherNotFound
		}
		return nil, fmt.Errorf("lock claim: %w", err)
	}
	switch status {
	case models.CustomerVoucherRedeemed:
		return nil, models.ErrAlreadyRedeemed
	case models.CustomerVoucherExpired:
		return nil, models.ErrExpired
	}

	var (
		state      models.VoucherState
		maxRed     sql.NullInt64
		maxPerUser int
		current    int
	)
	err = tx.QueryRowContext(ctx,
		`SELECT state, max_redemptions, max_redemptions_per_user, current_redemptions
		 FROM vouchers WHERE id = $1 FOR UPDATE`,
		p.VoucherID,
	).Scan(&state, &maxRed, &maxPerUser, &current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrVoucherNotFound
		}
		return nil, fmt.Errorf("lock voucher: %w", err)
	}
	if state == models.VoucherStateExpired {
		return nil, models.ErrExpired
	}
	if maxRed.Valid && int64(current) >= maxRed.Int64 {
		return nil, models.ErrCapacityExceeded
	}

	if maxPerUser > 0 {
		var used int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM redemptions WHERE voucher_id = $1 AND customer_id = $2`,
			p.VoucherID, p.CustomerID,
		).Scan(&used)
		if err != nil {
			return nil, fmt.Errorf("count user redemptions: %w", err)
		}
		if used >= maxPerUser {
			return nil, models.ErrAlreadyRedeemed
		}
	}

	// Conditional update is the compare-and-swap: status must still be
	// CLAIMED at write time.
	res, err := tx.ExecContext(ctx,
		`UPDATE customer_vouchers SET status = $1, redeemed_at = $2 WHERE id = $3 AND status = $4`,
		models.CustomerVoucherRedeemed, p.RedeemedAt, p.CustomerVoucherID, models.CustomerVoucherClaimed,
	)
	if err != nil {
		return nil, fmt.Errorf("mark redeemed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, models.ErrAlreadyRedeemed
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE vouchers SET current_redemptions = current_redemptions + 1, updated_at = NOW() WHERE id = $1`,
		p.VoucherID,
	)
	if err != nil {
		return nil, fmt.Errorf("increment counter: %w", err)
	}

	red := &models.Redemption{
		ID:                uuid.New(),
		VoucherID:         p.VoucherID,
		CustomerID:        p.CustomerID,
		CustomerVoucherID: p.CustomerVoucherID,
		ProviderID:        p.ProviderID,
		OperatorID:        p.OperatorID,
		RedeemedAt:        p.RedeemedAt,
		Location:          p.Location,
		DeviceID:          p.DeviceID,
		Offline:           p.Offline,
		CreatedAt:         time.Now().UTC(),
	}

	var lat, lng any
	if p.Location != nil {
		lat, lng = p.Location.Lat, p.Location.Lng
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO redemptions
		 (id, voucher_id, customer_id, customer_voucher_id, provider_id, operator_id,
		  redeemed_at, lat, lng, device_id, offline, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12)`,
		red.ID, red.VoucherID, red.CustomerID, red.CustomerVoucherID, red.ProviderID, red.OperatorID,
		red.RedeemedAt, lat, lng, red.DeviceID, red.Offline, red.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, models.ErrAlreadyRedeemed
		}
		return nil, fmt.Errorf("insert redemption: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit redeem tx: %w", err)
	}
	committed = true
	return red, nil
}

func (r *RedemptionRepo) RecentByCustomer(ctx context.Context, customerID uuid.UUID, since time.Time) ([]models.Redemption, error) {
	query := `
		SELECT id, voucher_id, customer_id, customer_voucher_id, provider_id, operator_id,
		       redeemed_at, lat, lng, device_id, offline, created_at
		FROM redemptions
		WHERE customer_id = $1 AND redeemed_at >= $2
		ORDER BY redeemed_at
	`
	return r.queryRedemptions(ctx, query, customerID, since)
}

func (r *RedemptionRepo) RecentByDevice(ctx context.Context, deviceID string, since time.Time) ([]models.Redemption, error) {
	query := `
		SELECT id, voucher_id, customer_id, customer_voucher_id, provider_id, operator_id,
		       redeemed_at, lat, lng, device_id, offline, created_at
		FROM redemptions
		WHERE device_id = $1 AND redeemed_at >= $2
		ORDER BY redeemed_at
	`
	return r.queryRedemptions(ctx, query, deviceID, since)
}

func (r *RedemptionRepo) queryRedemptions(ctx context.Context, query string, args ...any) ([]models.Redemption, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query redemptions: %w", err)
	}
	defer rows.Close()

	var out []models.Redemption
	for rows.Next() {
		var (
			red      models.Redemption
			operator uuid.NullUUID
			lat, lng sql.NullFloat64
			device   sql.NullString
		)
		if err := rows.Scan(
			&red.ID, &red.VoucherID, &red.CustomerID, &red.CustomerVoucherID,
			&red.ProviderID, &operator, &red.RedeemedAt, &lat, &lng,
			&device, &red.Offline, &red.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		if operator.Valid {
			op := operator.UUID
			red.OperatorID = &op
		}
		if lat.Valid && lng.Valid {
			red.Location = &models.GeoPoint{Lat: lat.Float64, Lng: lng.Float64}
		}
		red.DeviceID = device.String
		out = append(out, red)
	}
	return out, rows.Err()
}
