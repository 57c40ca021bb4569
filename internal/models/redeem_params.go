package models

import (
	"time"

	"github.com/google/uuid"
)

// RedeemParams is the input to the atomic redemption transition. All fields
// are resolved by the coordinator before the store is called.
type RedeemParams struct {
	CustomerVoucherID uuid.UUID
	VoucherID         uuid.UUID
	CustomerID        uuid.UUID
	ProviderID        uuid.UUID
	OperatorID        *uuid.UUID
	RedeemedAt        time.Time
	Location          *GeoPoint
	DeviceID          string
	Offline           bool
}
