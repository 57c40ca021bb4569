package fraud

import (
	"context"

	"github.com/google/uuid"

	"github.com/promoworks/voucher-redemption-service/internal/models"
)

// velocityDetector fires when one customer redeems too often inside the
// configured window. The redemption under review is already persisted, so it
// counts itself.
type velocityDetector struct {
	cfg     Config
	history RedemptionHistory
}

func (d *velocityDetector) Name() string { return FlagVelocity }

func (d *velocityDetector) Evaluate(ctx context.Context, red *models.Redemption) (bool, error) {
	since := red.RedeemedAt.Add(-d.cfg.velocityWindow())
	recent, err := d.history.RecentByCustomer(ctx, red.CustomerID, since)
	if err != nil {
		return false, err
	}
	return len(recent) >= d.cfg.VelocityMax, nil
}

// geoMismatchDetector fires when the capture location is implausibly far
// from the provider's address. No location or no provider address means no
// signal.
type geoMismatchDetector struct {
	cfg       Config
	providers ProviderDirectory
}

func (d *geoMismatchDetector) Name() string { return FlagGeoMismatch }

func (d *geoMismatchDetector) Evaluate(ctx context.Context, red *models.Redemption) (bool, error) {
	if red.Location == nil {
		return false, nil
	}
	provider, err := d.providers.Provider(ctx, red.ProviderID)
	if err != nil {
		return false, err
	}
	if provider == nil || provider.Location == nil {
		return false, nil
	}
	return red.Location.DistanceKm(*provider.Location) > d.cfg.GeoMaxKm, nil
}

// deviceReuseDetector fires when one device shows up redeeming for too many
// distinct customers, a typical pattern of harvested wallet codes.
type deviceReuseDetector struct {
	cfg     Config
	history RedemptionHistory
}

func (d *deviceReuseDetector) Name() string { return FlagDeviceReuse }

func (d *deviceReuseDetector) Evaluate(ctx context.Context, red *models.Redemption) (bool, error) {
	if red.DeviceID == "" {
		return false, nil
	}
	since := red.RedeemedAt.Add(-d.cfg.deviceWindow())
	rows, err := d.history.RecentByDevice(ctx, red.DeviceID, since)
	if err != nil {
		return false, err
	}
	customers := make(map[uuid.UUID]struct{}, len(rows))
	for _, r := range rows {
		customers[r.CustomerID] = struct{}{}
	}
	return len(customers) >= d.cfg.DeviceCustomerMax, nil
}

// offlineCaptureDetector adds a small base score to redemptions that were
// captured disconnected and only reconciled later.
type offlineCaptureDetector struct{}

func (offlineCaptureDetector) Name() string { return FlagOfflineCapture }

func (offlineCaptureDetector) Evaluate(_ context.Context, red *models.Redemption) (bool, error) {
	return red.Offline, nil
}
