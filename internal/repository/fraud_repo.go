package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/promoworks/voucher-redemption-service/internal/models"
)

// FraudRepo persists fraud cases. The redemption_id column is unique, which
// is what makes case creation idempotent under concurrent observers.
type FraudRepo struct {
	db *sql.DB
}

func NewFraudRepo(db *sql.DB) *FraudRepo {
	return &FraudRepo{db: db}
}

func (r *FraudRepo) CaseByRedemption(ctx context.Context, redemptionID uuid.UUID) (*models.FraudCase, error) {
	query := `
		SELECT id, redemption_id, case_number, risk_score, flags, urgent, status, created_at
		FROM fraud_cases
		WHERE redemption_id = $1
	`

	var fc models.FraudCase
	err := r.db.QueryRowContext(ctx, query, redemptionID).Scan(
		&fc.ID,
		&fc.RedemptionID,
		&fc.CaseNumber,
		&fc.RiskScore,
		pq.Array(&fc.Flags),
		&fc.Urgent,
		&fc.Status,
		&fc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fraud case by redemption: %w", err)
	}
	return &fc, nil
}

// CreateCase inserts the case, or returns the existing one when another
// observer already opened a case for the same redemption.
func (r *FraudRepo) CreateCase(ctx context.Context, fc *models.FraudCase) (*models.FraudCase, error) {
	query := `
		INSERT INTO fraud_cases (id, redemption_id, case_number, risk_score, flags, urgent, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (redemption_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		fc.ID, fc.RedemptionID, fc.CaseNumber, fc.RiskScore,
		pq.Array(fc.Flags), fc.Urgent, fc.Status, fc.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create fraud case: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		existing, err := r.CaseByRedemption(ctx, fc.RedemptionID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("create fraud case: conflict but no existing case for %s", fc.RedemptionID)
		}
		return existing, nil
	}
	return fc, nil
}
