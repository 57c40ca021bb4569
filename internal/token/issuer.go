package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/promoworks/voucher-redemption-service/internal/concurrency"
	"github.com/promoworks/voucher-redemption-service/internal/models"
	"github.com/promoworks/voucher-redemption-service/internal/signing"
)

const (
	// DefaultPrintTTL is the payload lifetime for bulk print runs; voucher
	// books sit on shelves for a long time.
	DefaultPrintTTL = 365 * 24 * time.Hour
	// DefaultDigitalTTL applies to customer-held payloads, which a wallet app
	// can re-request at any time.
	DefaultDigitalTTL = 24 * time.Hour

	batchWorkers = 8
)

// QRClaims is the signed claim set embedded in a QR payload. Any holder of
// the public key can verify it without calling back to this service.
type QRClaims struct {
	VoucherID  string `json:"vid"`
	ProviderID string `json:"pid"`
	BatchID    string `json:"bid"`
	CustomerID string `json:"cid,omitempty"`
	jwt.RegisteredClaims
}

// CodeStore is the persistence surface the issuer needs for short codes:
// collision checks against active codes and saving freshly issued ones.
type CodeStore interface {
	ActiveCodeExists(ctx context.Context, code string) (bool, error)
	SaveCode(ctx context.Context, code *models.VoucherCode) error
}

// Issuer produces the two redemption artifacts — signed QR payloads and
// checksum-protected short codes — and decodes them back. One Issuer instance
// is the single signing/verifying capability in the process.
type Issuer struct {
	keys   *signing.KeyManager
	codes  CodeStore
	secret []byte
	now    func() time.Time
}

// NewIssuer wires the issuer. An empty checksum secret is a configuration
// error the caller must treat as fatal at startup.
func NewIssuer(keys *signing.KeyManager, codes CodeStore, secret []byte) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: short-code secret must not be empty")
	}
	return &Issuer{
		keys:   keys,
		codes:  codes,
		secret: secret,
		now:    time.Now,
	}, nil
}

// QROptions tunes a single QR issuance. Zero values mean: generate a batch
// id, derive the TTL from whether the payload is customer-held.
type QROptions struct {
	TTL        time.Duration
	BatchID    string
	CustomerID *uuid.UUID
}

// IssueQR builds and signs a QR payload for (voucher, provider). Expiry is
// enforced at verification time from the embedded issued-at plus TTL; the
// verifier's clock is authoritative, never the scanning client's.
func (i *Issuer) IssueQR(ctx context.Context, voucherID, providerID uuid.UUID, opts QROptions) (string, error) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultPrintTTL
		if opts.CustomerID != nil {
			ttl = DefaultDigitalTTL
		}
	}
	batchID := opts.BatchID
	if batchID == "" {
		batchID = uuid.NewString()
	}

	now := i.now().UTC()
	claims := QRClaims{
		VoucherID:  voucherID.String(),
		ProviderID: providerID.String(),
		BatchID:    batchID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if opts.CustomerID != nil {
		claims.CustomerID = opts.CustomerID.String()
	}

	key, err := i.keys.Private()
	if err != nil {
		return "", fmt.Errorf("issue qr: %w", err)
	}
	payload, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("issue qr: %w", err)
	}
	return payload, nil
}

// DecodeQR verifies signature and freshness of a QR payload. Failures
// collapse into the taxonomy: expired payloads report ErrExpired, everything
// else ErrInvalidCode.
func (i *Issuer) DecodeQR(raw string) (*QRClaims, error) {
	pub, err := i.keys.PublicKey()
	if err != nil {
		// No key material means we never issued anything this payload could
		// have come from.
		return nil, models.ErrInvalidCode
	}

	var claims QRClaims
	_, err = jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) { return pub, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrExpired
		}
		return nil, models.ErrInvalidCode
	}
	if _, err := uuid.Parse(claims.VoucherID); err != nil {
		return nil, models.ErrInvalidCode
	}
	if _, err := uuid.Parse(claims.ProviderID); err != nil {
		return nil, models.ErrInvalidCode
	}
	return &claims, nil
}

// BatchItem pairs a voucher with the provider allowed to redeem it.
type BatchItem struct {
	VoucherID  uuid.UUID
	ProviderID uuid.UUID
}

// IssueBatch produces payloads for a bulk print run under one shared batch
// id. Items are signed in parallel with no completion ordering; the result
// holds exactly one payload per input voucher or the whole batch fails.
func (i *Issuer) IssueBatch(ctx context.Context, items []BatchItem, batchID string) (map[uuid.UUID]string, error) {
	if batchID == "" {
		batchID = uuid.NewString()
	}

	payloads := make([]string, len(items))
	err := concurrency.ForEach(ctx, batchWorkers, len(items), func(ctx context.Context, idx int) error {
		it := items[idx]
		p, err := i.IssueQR(ctx, it.VoucherID, it.ProviderID, QROptions{BatchID: batchID})
		if err != nil {
			return fmt.Errorf("voucher %s: %w", it.VoucherID, err)
		}
		payloads[idx] = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("issue batch %s: %w", batchID, err)
	}

	out := make(map[uuid.UUID]string, len(items))
	for idx, it := range items {
		out[it.VoucherID] = payloads[idx]
	}
	if len(out) != len(items) {
		return nil, fmt.Errorf("issue batch %s: duplicate voucher ids in input", batchID)
	}
	return out, nil
}

// WithClock overrides the issuer's time source. Used by tests to step
// through TTL boundaries.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}
