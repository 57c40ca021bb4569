package models

import (
	"time"

	"github.com/google/uuid"
)

type CodeType string

const (
	CodeTypeQR     CodeType = "QR"
	CodeTypeShort  CodeType = "SHORT"
	CodeTypeStatic CodeType = "STATIC"
)

// VoucherCode maps a printable/enterable code to a voucher. Several codes of
// different types may point at the same voucher; deactivating one never touches
// redemptions that already happened through it.
type VoucherCode struct {
	ID        uuid.UUID
	VoucherID uuid.UUID
	Type      CodeType
	Code      string // short-code body including checksum char; empty for QR
	BatchID   string
	IsActive  bool
	ExpiresAt time.Time
	CreatedAt time.Time
}
