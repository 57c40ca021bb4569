package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// GeoPoint is a WGS84 coordinate attached to a redemption or a provider
// address.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance to other in kilometers.
func (p GeoPoint) DistanceKm(other GeoPoint) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLng := (other.Lng - p.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Redemption records one successful voucher use. Rows are insert-only: nothing
// in the system mutates or deletes a redemption after creation.
type Redemption struct {
	ID                uuid.UUID
	VoucherID         uuid.UUID
	CustomerID        uuid.UUID
	CustomerVoucherID uuid.UUID
	ProviderID        uuid.UUID
	OperatorID        *uuid.UUID
	RedeemedAt        time.Time
	Location          *GeoPoint
	DeviceID          string
	Offline           bool
	CreatedAt         time.Time
}
