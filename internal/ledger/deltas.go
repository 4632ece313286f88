package ledger

// TransferStatus is the lifecycle state of one stock transfer line item.
type TransferStatus string

const (
	// TransferPending means the stock has not yet left the source.
	TransferPending TransferStatus = "PENDING"
	// TransferInTransit means the stock left the source and is expected at the destination.
	TransferInTransit TransferStatus = "IN_TRANSIT"
	// TransferReceived means the destination accepted the stock.
	TransferReceived TransferStatus = "RECEIVED"
	// TransferRejected means the destination refused the stock; the quantity
	// leaves circulation without landing anywhere.
	TransferRejected TransferStatus = "REJECTED"
)

// IsValid reports whether the status is part of the transfer lifecycle.
func (s TransferStatus) IsValid() bool {
	switch s {
	case TransferPending, TransferInTransit, TransferReceived, TransferRejected:
		return true
	default:
		return false
	}
}

// TransferLineItem is one immutable line of a stock transfer snapshot.
// Quantity never changes after creation; partial transitions are modelled as
// multiple line items.
type TransferLineItem struct {
	UUID            string         `json:"uuid"`
	InventoryItemID string         `json:"inventoryItemId"`
	Status          TransferStatus `json:"status"`
	Quantity        int            `json:"quantity"`
}

// TransferSnapshot is one document state handed in by a document service.
// The location pair belongs to the snapshot: the previous and current state
// of the same transfer may name different locations.
type TransferSnapshot struct {
	FromLocationID string             `json:"fromLocationId,omitempty"`
	ToLocationID   string             `json:"toLocationId,omitempty"`
	LineItems      []TransferLineItem `json:"lineItems"`
}

// DeltaKey addresses one (location, inventory item) accumulator.
type DeltaKey struct {
	LocationID      string
	InventoryItemID string
}

// BucketDeltas is the net change of the incoming and available buckets for
// one delta key.
type BucketDeltas struct {
	Incoming  int
	Available int
}

func (d BucketDeltas) zero() bool {
	return d.Incoming == 0 && d.Available == 0
}

// TransferDeltas computes the net per-bucket quantity deltas implied by
// replacing the previous snapshot with the current one.
//
// Instead of diffing the two line-item lists structurally, it applies the full
// steady-state effect of the previous snapshot with factor -1 and the full
// effect of the current snapshot with factor +1. Effects are additive, so the
// sum equals the structural diff, and recomputing against an unchanged
// snapshot yields no deltas at all.
func TransferDeltas(previous, current TransferSnapshot) map[DeltaKey]BucketDeltas {
	acc := make(map[DeltaKey]BucketDeltas)
	accumulateTransferEffect(acc, previous, -1)
	accumulateTransferEffect(acc, current, +1)
	for key, deltas := range acc {
		if deltas.zero() {
			delete(acc, key)
		}
	}
	return acc
}

// accumulateTransferEffect adds the steady-state bucket effect of one
// snapshot, multiplied by factor, into acc. A line item contributes nothing
// for a side whose location is unknown.
func accumulateTransferEffect(acc map[DeltaKey]BucketDeltas, snap TransferSnapshot, factor int) {
	for _, item := range snap.LineItems {
		qty := item.Quantity * factor
		switch item.Status {
		case TransferInTransit, TransferReceived, TransferRejected:
			// The stock has left the source in all three states.
			if snap.FromLocationID != "" {
				key := DeltaKey{LocationID: snap.FromLocationID, InventoryItemID: item.InventoryItemID}
				deltas := acc[key]
				deltas.Available -= qty
				acc[key] = deltas
			}
		}
		if snap.ToLocationID == "" {
			continue
		}
		key := DeltaKey{LocationID: snap.ToLocationID, InventoryItemID: item.InventoryItemID}
		switch item.Status {
		case TransferInTransit:
			deltas := acc[key]
			deltas.Incoming += qty
			acc[key] = deltas
		case TransferReceived:
			deltas := acc[key]
			deltas.Available += qty
			acc[key] = deltas
		}
		// PENDING has not left the source; REJECTED never lands.
	}
}

// CombineDeltas sums several delta sets into one, dropping keys that cancel
// out. Combining the deltas of chained recomputations matches a single
// end-to-end recomputation.
func CombineDeltas(sets ...map[DeltaKey]BucketDeltas) map[DeltaKey]BucketDeltas {
	combined := make(map[DeltaKey]BucketDeltas)
	for _, set := range sets {
		for key, deltas := range set {
			sum := combined[key]
			sum.Incoming += deltas.Incoming
			sum.Available += deltas.Available
			combined[key] = sum
		}
	}
	for key, deltas := range combined {
		if deltas.zero() {
			delete(combined, key)
		}
	}
	return combined
}
