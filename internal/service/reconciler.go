package service

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/promoworks/voucher-redemption-service/internal/models"
)

// Reconciler replays redemption attempts captured while a device was
// offline. Items run sequentially in client-reported capture order so the
// replay approximates what would have happened online; independent batches
// from different devices may run concurrently, the store-level transition
// resolves cross-batch races.
type Reconciler struct {
	coordinator *Coordinator
}

func NewReconciler(coordinator *Coordinator) *Reconciler {
	return &Reconciler{coordinator: coordinator}
}

// Reconcile processes one device's batch. Business-rule failures are recorded
// per item and never abort the rest; only structural failures (empty batch,
// store outage) return an error. Resubmitting a batch is safe: items already
// applied resolve to ALREADY_REDEEMED.
func (r *Reconciler) Reconcile(ctx context.Context, providerID uuid.UUID, operatorID *uuid.UUID, items []models.OfflineItem) ([]models.OfflineItemResult, error) {
	if len(items) == 0 {
		return nil, errors.New("reconcile: empty batch")
	}

	// Client timestamps are trusted only as an ordering hint. The stable sort
	// keeps submission order for equal timestamps, and Sequence in each
	// result preserves the replay position for audit.
	ordered := make([]models.OfflineItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].RedeemedAt.Before(ordered[b].RedeemedAt)
	})

	results := make([]models.OfflineItemResult, 0, len(ordered))
	for seq, item := range ordered {
		res := models.OfflineItemResult{Code: item.Code, Sequence: seq}

		if item.Code == "" {
			res.FailureCode = models.FailureInvalidCode
			results = append(results, res)
			continue
		}

		redeemedAt := item.RedeemedAt
		out, err := r.coordinator.Redeem(ctx, RedeemRequest{
			Code:       item.Code,
			ProviderID: providerID,
			CustomerID: item.CustomerID,
			OperatorID: operatorID,
			Location:   item.Location,
			DeviceID:   item.DeviceID,
			Offline:    true,
			RedeemedAt: &redeemedAt,
		})
		if err != nil {
			return nil, err
		}

		res.Success = out.Success
		if out.Success {
			res.RedemptionID = &out.Redemption.ID
		} else {
			res.FailureCode = out.Code
		}
		results = append(results, res)
	}
	return results, nil
}
