// Package transfer turns stock-transfer document states into ledger
// adjustments. The document CRUD itself lives elsewhere; callers hand in an
// immutable previous/current snapshot pair per save.
package transfer

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/workmate-pos/workmate-sub003/internal/ledger"
)

// LedgerPort is the slice of the mutation engine this package needs.
type LedgerPort interface {
	Adjust(ctx context.Context, req ledger.AdjustRequest) error
}

// Service computes transfer deltas and applies them through the ledger.
type Service struct {
	ledger LedgerPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(ledgerService LedgerPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: ledgerService, logger: logger}
}

// SyncInput carries one document save: the snapshot pair plus the audit
// envelope. Reason follows the lifecycle transition (movement_created,
// movement_updated, movement_received, movement_canceled) and is chosen by
// the calling document service.
type SyncInput struct {
	Shop      string
	Initiator ledger.Initiator
	Reason    string
	Previous  ledger.TransferSnapshot
	Current   ledger.TransferSnapshot
}

// Sync applies the net bucket deltas between the two snapshots. The available
// and incoming legs are dispatched as two concurrent ADJUST calls and both
// are awaited. When one leg fails the other is not rolled back or cancelled:
// an applied leg stays applied and the overall error reports the failure.
func (s *Service) Sync(ctx context.Context, in SyncInput) error {
	deltas := ledger.TransferDeltas(in.Previous, in.Current)
	available, incoming := splitChanges(deltas)
	if len(available) == 0 && len(incoming) == 0 {
		return nil
	}
	s.logger.Info("syncing transfer deltas",
		slog.String("initiator_name", in.Initiator.Name),
		slog.Int("available_changes", len(available)),
		slog.Int("incoming_changes", len(incoming)),
	)

	var g errgroup.Group
	if len(available) > 0 {
		g.Go(func() error {
			return s.ledger.Adjust(ctx, ledger.AdjustRequest{
				Shop:      in.Shop,
				Initiator: in.Initiator,
				Reason:    in.Reason,
				Name:      ledger.BucketAvailable,
				Changes:   available,
			})
		})
	}
	if len(incoming) > 0 {
		g.Go(func() error {
			return s.ledger.Adjust(ctx, ledger.AdjustRequest{
				Shop:      in.Shop,
				Initiator: in.Initiator,
				Reason:    in.Reason,
				Name:      ledger.BucketIncoming,
				Changes:   incoming,
			})
		})
	}
	return g.Wait()
}

// splitChanges flattens the delta map into per-bucket change lists, ordered
// by key so repeated saves produce identical audit rows.
func splitChanges(deltas map[ledger.DeltaKey]ledger.BucketDeltas) (available, incoming []ledger.AdjustChange) {
	keys := make([]ledger.DeltaKey, 0, len(deltas))
	for key := range deltas {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].LocationID != keys[j].LocationID {
			return keys[i].LocationID < keys[j].LocationID
		}
		return keys[i].InventoryItemID < keys[j].InventoryItemID
	})
	for _, key := range keys {
		d := deltas[key]
		if d.Available != 0 {
			available = append(available, ledger.AdjustChange{
				LocationID:      key.LocationID,
				InventoryItemID: key.InventoryItemID,
				Delta:           d.Available,
			})
		}
		if d.Incoming != 0 {
			incoming = append(incoming, ledger.AdjustChange{
				LocationID:      key.LocationID,
				InventoryItemID: key.InventoryItemID,
				Delta:           d.Incoming,
			})
		}
	}
	return available, incoming
}
