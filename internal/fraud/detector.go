package fraud

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"

	"github.com/promoworks/voucher-redemption-service/internal/models"
)

// RedemptionHistory is the read-only redemption view scoring runs against.
type RedemptionHistory interface {
	RecentByCustomer(ctx context.Context, customerID uuid.UUID, since time.Time) ([]models.Redemption, error)
	RecentByDevice(ctx context.Context, deviceID string, since time.Time) ([]models.Redemption, error)
}

// CaseStore persists fraud cases. CreateCase returns the already-existing
// case when another observer won the race for the same redemption.
type CaseStore interface {
	CaseByRedemption(ctx context.Context, redemptionID uuid.UUID) (*models.FraudCase, error)
	CreateCase(ctx context.Context, c *models.FraudCase) (*models.FraudCase, error)
}

// ProviderDirectory resolves the provider address for the geo check.
type ProviderDirectory interface {
	Provider(ctx context.Context, id uuid.UUID) (*models.Provider, error)
}

// FlagDetector is one pluggable fraud signal. Detectors run in order and
// each contributes its configured weight when it fires.
type FlagDetector interface {
	Name() string
	Evaluate(ctx context.Context, red *models.Redemption) (bool, error)
}

// Detector scores redemptions after they commit and opens cases over the
// threshold. It only ever flags: a detector error or an open case never
// blocks or reverses the redemption it looked at.
type Detector struct {
	cfg       Config
	cases     CaseStore
	detectors []FlagDetector
	node      *snowflake.Node
	logger    *log.Logger
	now       func() time.Time
}

// NewDetector builds the default detector stack: velocity, geo-mismatch,
// device reuse and offline capture, in that order.
func NewDetector(cfg Config, history RedemptionHistory, cases CaseStore, providers ProviderDirectory, logger *log.Logger) (*Detector, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("fraud case numbering: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Detector{
		cfg:   cfg,
		cases: cases,
		detectors: []FlagDetector{
			&velocityDetector{cfg: cfg, history: history},
			&geoMismatchDetector{cfg: cfg, providers: providers},
			&deviceReuseDetector{cfg: cfg, history: history},
			offlineCaptureDetector{},
		},
		node:   node,
		logger: logger,
		now:    time.Now,
	}, nil
}

// WithDetectors replaces the flag-detector stack; order is evaluation order.
func (d *Detector) WithDetectors(detectors ...FlagDetector) *Detector {
	d.detectors = detectors
	return d
}

// Observe scores one redemption. Idempotent per redemption: a second call
// for the same id returns the existing case untouched. Returns (nil, nil)
// when the score stays under the case threshold.
func (d *Detector) Observe(ctx context.Context, red *models.Redemption) (*models.FraudCase, error) {
	existing, err := d.cases.CaseByRedemption(ctx, red.ID)
	if err != nil {
		return nil, fmt.Errorf("fraud case lookup: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	var (
		score float64
		flags []string
	)
	for _, det := range d.detectors {
		hit, derr := det.Evaluate(ctx, red)
		if derr != nil {
			// A broken signal must not take scoring down with it.
			d.logger.Printf("fraud flag %s on redemption %s: %v", det.Name(), red.ID, derr)
			continue
		}
		if hit {
			flags = append(flags, det.Name())
			score += d.cfg.Weights[det.Name()]
		}
	}

	if score < d.cfg.CaseThreshold {
		return nil, nil
	}

	fc := &models.FraudCase{
		ID:           uuid.New(),
		RedemptionID: red.ID,
		CaseNumber:   "FC-" + d.node.Generate().String(),
		RiskScore:    score,
		Flags:        flags,
		Urgent:       score >= d.cfg.UrgentThreshold,
		Status:       models.FraudCaseOpen,
		CreatedAt:    d.now().UTC(),
	}
	created, err := d.cases.CreateCase(ctx, fc)
	if err != nil {
		return nil, fmt.Errorf("create fraud case: %w", err)
	}
	return created, nil
}
