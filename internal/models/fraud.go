package models

import (
	"time"

	"github.com/google/uuid"
)

type FraudCaseStatus string

const (
	FraudCaseOpen     FraudCaseStatus = "OPEN"
	FraudCaseReviewed FraudCaseStatus = "REVIEWED"
	FraudCaseClosed   FraudCaseStatus = "CLOSED"
)

// FraudCase flags a redemption for downstream review. At most one case exists
// per redemption; creation is idempotent on RedemptionID.
type FraudCase struct {
	ID           uuid.UUID
	RedemptionID uuid.UUID
	CaseNumber   string
	RiskScore    float64
	Flags        []string // detector names in evaluation order
	Urgent       bool
	Status       FraudCaseStatus
	CreatedAt    time.Time
}
