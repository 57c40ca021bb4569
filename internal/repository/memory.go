package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promoworks/voucher-redemption-service/internal/models"
)

// MemoryStore implements every store interface of the core against in-process
// maps, with the same atomicity contract as the Postgres repos (one mutex
// stands in for the redeem transaction). Tests and local runs without
// Postgres use it.
type MemoryStore struct {
	mu          sync.Mutex
	vouchers    map[uuid.UUID]*models.Voucher
	codes       map[string]*models.VoucherCode
	claims      map[uuid.UUID]*models.CustomerVoucher
	redemptions []models.Redemption
	redeemed    map[uuid.UUID]bool // customer_voucher_id -> redemption exists
	cases       map[uuid.UUID]*models.FraudCase // by redemption id
	providers   map[uuid.UUID]*models.Provider
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vouchers:  make(map[uuid.UUID]*models.Voucher),
		codes:     make(map[string]*models.VoucherCode),
		claims:    make(map[uuid.UUID]*models.CustomerVoucher),
		redeemed:  make(map[uuid.UUID]bool),
		cases:     make(map[uuid.UUID]*models.FraudCase),
		providers: make(map[uuid.UUID]*models.Provider),
	}
}

// --- seeding helpers (claiming and publishing happen outside this core) ---

func (s *MemoryStore) AddVoucher(v models.Voucher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vouchers[v.ID] = &v
}

func (s *MemoryStore) AddProvider(p models.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.ID] = &p
}

func (s *MemoryStore) AddClaim(cv models.CustomerVoucher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[cv.ID] = &cv
}

// AddRedemption seeds history directly, bypassing the transition. Only for
// fraud-scoring tests.
func (s *MemoryStore) AddRedemption(red models.Redemption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redemptions = append(s.redemptions, red)
	s.redeemed[red.CustomerVoucherID] = true
}

// DeactivateCode flips is_active the way admin tooling would.
func (s *MemoryStore) DeactivateCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if vc, ok := s.codes[code]; ok {
		vc.IsActive = false
	}
}

// VoucherSnapshot returns a copy of the current voucher row for assertions.
func (s *MemoryStore) VoucherSnapshot(id uuid.UUID) (models.Voucher, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[id]
	if !ok {
		return models.Voucher{}, false
	}
	return *v, true
}

// ClaimSnapshot returns a copy of the current claim row for assertions.
func (s *MemoryStore) ClaimSnapshot(id uuid.UUID) (models.CustomerVoucher, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cv, ok := s.claims[id]
	if !ok {
		return models.CustomerVoucher{}, false
	}
	return *cv, true
}

// RedemptionCount reports how many redemption rows exist.
func (s *MemoryStore) RedemptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redemptions)
}

// --- service.VoucherStore ---

func (s *MemoryStore) VoucherByID(_ context.Context, id uuid.UUID) (*models.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[id]
	if !ok {
		return nil, nil
	}
	out := *v
	return &out, nil
}

func (s *MemoryStore) VoucherCodeByCode(_ context.Context, code string) (*models.VoucherCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vc, ok := s.codes[code]
	if !ok {
		return nil, nil
	}
	out := *vc
	return &out, nil
}

func (s *MemoryStore) CustomerVoucher(_ context.Context, voucherID, customerID uuid.UUID) (*models.CustomerVoucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var fallback *models.CustomerVoucher
	for _, cv := range s.claims {
		if cv.VoucherID != voucherID || cv.CustomerID != customerID {
			continue
		}
		if cv.Status == models.CustomerVoucherClaimed {
			out := *cv
			return &out, nil
		}
		if fallback == nil || cv.ClaimedAt.After(fallback.ClaimedAt) {
			fallback = cv
		}
	}
	if fallback == nil {
		return nil, nil
	}
	out := *fallback
	return &out, nil
}

// --- token.CodeStore ---

func (s *MemoryStore) ActiveCodeExists(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vc, ok := s.codes[code]
	return ok && vc.IsActive, nil
}

func (s *MemoryStore) SaveCode(_ context.Context, vc *models.VoucherCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *vc
	s.codes[vc.Code] = &cp
	return nil
}

// --- service.RedemptionStore ---

func (s *MemoryStore) Redeem(_ context.Context, p models.RedeemParams) (*models.Redemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, ok := s.claims[p.CustomerVoucherID]
	if !ok {
		return nil, models.ErrVoucherNotFound
	}
	voucher, ok := s.vouchers[p.VoucherID]
	if !ok {
		return nil, models.ErrVoucherNotFound
	}

	if s.redeemed[p.CustomerVoucherID] {
		return nil, models.ErrAlreadyRedeemed
	}
	if voucher.State == models.VoucherStateExpired {
		return nil, models.ErrExpired
	}
	if !voucher.CapacityLeft() {
		return nil, models.ErrCapacityExceeded
	}
	if voucher.MaxRedemptionsPerUser > 0 {
		used := 0
		for _, red := range s.redemptions {
			if red.VoucherID == p.VoucherID && red.CustomerID == p.CustomerID {
				used++
			}
		}
		if used >= voucher.MaxRedemptionsPerUser {
			return nil, models.ErrAlreadyRedeemed
		}
	}

	// The transition method is the single enforcement point for the claim
	// state machine; it rejects REDEEMED/EXPIRED claims.
	if err := claim.MarkRedeemed(p.RedeemedAt); err != nil {
		return nil, err
	}
	voucher.CurrentRedemptions++
	voucher.UpdatedAt = time.Now().UTC()

	red := models.Redemption{
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
	s.redemptions = append(s.redemptions, red)
	s.redeemed[p.CustomerVoucherID] = true

	out := red
	return &out, nil
}

// --- fraud.RedemptionHistory ---

func (s *MemoryStore) RecentByCustomer(_ context.Context, customerID uuid.UUID, since time.Time) ([]models.Redemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Redemption
	for _, red := range s.redemptions {
		if red.CustomerID == customerID && !red.RedeemedAt.Before(since) {
			out = append(out, red)
		}
	}
	return out, nil
}

func (s *MemoryStore) RecentByDevice(_ context.Context, deviceID string, since time.Time) ([]models.Redemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Redemption
	for _, red := range s.redemptions {
		if red.DeviceID == deviceID && !red.RedeemedAt.Before(since) {
			out = append(out, red)
		}
	}
	return out, nil
}

// --- fraud.CaseStore ---

func (s *MemoryStore) CaseByRedemption(_ context.Context, redemptionID uuid.UUID) (*models.FraudCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc, ok := s.cases[redemptionID]
	if !ok {
		return nil, nil
	}
	out := *fc
	return &out, nil
}

func (s *MemoryStore) CreateCase(_ context.Context, fc *models.FraudCase) (*models.FraudCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.cases[fc.RedemptionID]; ok {
		out := *existing
		return &out, nil
	}
	cp := *fc
	s.cases[fc.RedemptionID] = &cp
	out := cp
	return &out, nil
}

// --- service.ProviderDirectory / fraud.ProviderDirectory ---

func (s *MemoryStore) Provider(_ context.Context, id uuid.UUID) (*models.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[id]
	if !ok {
		return nil, nil
	}
	out := *p
	return &out, nil
}
