package token

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/promoworks/voucher-redemption-service/internal/models"
)

// shortCodeAlphabet drops 0/O/1/I class confusables. 32 characters, so a
// random byte maps onto it without modulo bias.
const shortCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const (
	shortCodeBodyLen     = 8
	shortCodeLen         = shortCodeBodyLen + 1 // body + checksum char
	maxShortCodeAttempts = 5
	defaultShortCodeTTL  = 90 * 24 * time.Hour
)

// ShortCode is the human-typeable artifact: an 8-char body plus one
// HMAC-derived checksum character.
type ShortCode struct {
	Code      string    `json:"code"`
	Checksum  string    `json:"checksum"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Full returns the code as entered at the till, body and checksum joined.
func (s ShortCode) Full() string {
	return s.Code + s.Checksum
}

// ShortCodeOptions tunes short-code issuance.
type ShortCodeOptions struct {
	ExpiresAt time.Time // zero = now + 90 days
}

// IssueShortCode mints a collision-checked short code for a voucher and
// persists it as an active SHORT voucher code. Colliding candidates are
// regenerated up to a small attempt budget.
func (i *Issuer) IssueShortCode(ctx context.Context, voucherID uuid.UUID, opts ShortCodeOptions) (ShortCode, error) {
	expiresAt := opts.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = i.now().UTC().Add(defaultShortCodeTTL)
	}

	for attempt := 0; attempt < maxShortCodeAttempts; attempt++ {
		body, err := randomCodeBody()
		if err != nil {
			return ShortCode{}, fmt.Errorf("issue short code: %w", err)
		}
		check := i.checksumChar(body)
		full := body + string(check)

		exists, err := i.codes.ActiveCodeExists(ctx, full)
		if err != nil {
			return ShortCode{}, fmt.Errorf("issue short code: %w", err)
		}
		if exists {
			continue
		}

		vc := &models.VoucherCode{
			ID:        uuid.New(),
			VoucherID: voucherID,
			Type:      models.CodeTypeShort,
			Code:      full,
			IsActive:  true,
			ExpiresAt: expiresAt,
			CreatedAt: i.now().UTC(),
		}
		if err := i.codes.SaveCode(ctx, vc); err != nil {
			return ShortCode{}, fmt.Errorf("issue short code: %w", err)
		}
		return ShortCode{Code: body, Checksum: string(check), ExpiresAt: expiresAt}, nil
	}
	return ShortCode{}, fmt.Errorf("issue short code: no collision-free code after %d attempts", maxShortCodeAttempts)
}

// VerifyShortCode normalizes user input and checks length, alphabet and the
// checksum character. It returns the canonical code for lookup.
func (i *Issuer) VerifyShortCode(input string) (string, error) {
	code := NormalizeShortCode(input)
	if len(code) != shortCodeLen {
		return "", models.ErrInvalidCode
	}
	for _, c := range code {
		if !strings.ContainsRune(shortCodeAlphabet, c) {
			return "", models.ErrInvalidCode
		}
	}
	if i.checksumChar(code[:shortCodeBodyLen]) != code[shortCodeLen-1] {
		return "", models.ErrInvalidCode
	}
	return code, nil
}

// NormalizeShortCode uppercases and strips the separators people type.
func NormalizeShortCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	return strings.ReplaceAll(s, "-", "")
}

// checksumChar derives one alphabet character from an HMAC over the code
// body, keyed with the issuer secret. A guessed body has a 1/32 chance of a
// valid checksum, and the mapping is not computable without the key.
func (i *Issuer) checksumChar(body string) byte {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(body))
	sum := mac.Sum(nil)
	idx := binary.BigEndian.Uint32(sum[:4]) % uint32(len(shortCodeAlphabet))
	return shortCodeAlphabet[idx]
}

func randomCodeBody() (string, error) {
	var raw [shortCodeBodyLen]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	body := make([]byte, shortCodeBodyLen)
	for j, b := range raw {
		body[j] = shortCodeAlphabet[int(b)%len(shortCodeAlphabet)]
	}
	return string(body), nil
}
