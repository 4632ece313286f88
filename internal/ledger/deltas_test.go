package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferDeltasNewTransitLine(t *testing.T) {
	previous := TransferSnapshot{
		FromLocationID: "location/1",
		ToLocationID:   "location/2",
	}
	current := TransferSnapshot{
		FromLocationID: "location/1",
		ToLocationID:   "location/2",
		LineItems: []TransferLineItem{
			{UUID: "li-1", InventoryItemID: "inventory-item/10", Status: TransferInTransit, Quantity: 5},
		},
	}

	deltas := TransferDeltas(previous, current)

	require.Len(t, deltas, 2)
	assert.Equal(t, BucketDeltas{Available: -5}, deltas[DeltaKey{LocationID: "location/1", InventoryItemID: "inventory-item/10"}])
	assert.Equal(t, BucketDeltas{Incoming: 5}, deltas[DeltaKey{LocationID: "location/2", InventoryItemID: "inventory-item/10"}])
}

func TestTransferDeltasTransitToReceived(t *testing.T) {
	previous := TransferSnapshot{
		FromLocationID: "location/1",
		ToLocationID:   "location/2",
		LineItems: []TransferLineItem{
			{UUID: "li-1", InventoryItemID: "inventory-item/10", Status: TransferInTransit, Quantity: 5},
		},
	}
	current := TransferSnapshot{
		FromLocationID: "location/1",
		ToLocationID:   "location/2",
		LineItems: []TransferLineItem{
			{UUID: "li-1", InventoryItemID: "inventory-item/10", Status: TransferReceived, Quantity: 5},
		},
	}

	deltas := TransferDeltas(previous, current)

	// Source already paid on entering transit, so only the destination moves.
	require.Len(t, deltas, 1)
	assert.Equal(t, BucketDeltas{Incoming: -5, Available: 5}, deltas[DeltaKey{LocationID: "location/2", InventoryItemID: "inventory-item/10"}])
}

func TestTransferDeltasRejectedLeavesCirculation(t *testing.T) {
	previous := TransferSnapshot{
		FromLocationID: "location/1",
		ToLocationID:   "location/2",
		LineItems: []TransferLineItem{
			{UUID: "li-1", InventoryItemID: "inventory-item/10", Status: TransferInTransit, Quantity: 3},
		},
	}
	current := TransferSnapshot{
		FromLocationID: "location/1",
		ToLocationID:   "location/2",
		LineItems: []TransferLineItem{
			{UUID: "li-1", InventoryItemID: "inventory-item/10", Status: TransferRejected, Quantity: 3},
		},
	}

	deltas := TransferDeltas(previous, current)

	// The source stays debited and the destination loses its expectation;
	// the quantity lands nowhere.
	require.Len(t, deltas, 1)
	assert.Equal(t, BucketDeltas{Incoming: -3}, deltas[DeltaKey{LocationID: "location/2", InventoryItemID: "inventory-item/10"}])
}

func TestTransferDeltasPendingHasNoEffect(t *testing.T) {
	previous := TransferSnapshot{FromLocationID: "location/1", ToLocationID: "location/2"}
	current := TransferSnapshot{
		FromLocationID: "location/1",
		ToLocationID:   "location/2",
		LineItems: []TransferLineItem{
			{UUID: "li-1", InventoryItemID: "inventory-item/10", Status: TransferPending, Quantity: 9},
		},
	}

	assert.Empty(t, TransferDeltas(previous, current))
}

func TestTransferDeltasUnchangedSnapshotIsEmpty(t *testing.T) {
	snap := TransferSnapshot{
		FromLocationID: "location/1",
		ToLocationID:   "location/2",
		LineItems: []TransferLineItem{
			{UUID: "li-1", InventoryItemID: "inventory-item/10", Status: TransferInTransit, Quantity: 5},
			{UUID: "li-2", InventoryItemID: "inventory-item/11", Status: TransferReceived, Quantity: 2},
		},
	}

	assert.Empty(t, TransferDeltas(snap, snap))
}

func TestTransferDeltasLocationChangeMovesExpectation(t *testing.T) {
	previous := TransferSnapshot{
		FromLocationID: "location/1",
		ToLocationID:   "location/2",
		LineItems: []TransferLineItem{
			{UUID: "li-1", InventoryItemID: "inventory-item/10", Status: TransferInTransit, Quantity: 4},
		},
	}
	current := TransferSnapshot{
		FromLocationID: "location/1",
		ToLocationID:   "location/3",
		LineItems:      previous.LineItems,
	}

	deltas := TransferDeltas(previous, current)

	// Same source, so its contribution cancels; incoming relocates.
	require.Len(t, deltas, 2)
	assert.Equal(t, BucketDeltas{Incoming: -4}, deltas[DeltaKey{LocationID: "location/2", InventoryItemID: "inventory-item/10"}])
	assert.Equal(t, BucketDeltas{Incoming: 4}, deltas[DeltaKey{LocationID: "location/3", InventoryItemID: "inventory-item/10"}])
}

func TestTransferDeltasMissingLocationContributesNothing(t *testing.T) {
	previous := TransferSnapshot{ToLocationID: "location/2"}
	current := TransferSnapshot{
		ToLocationID: "location/2",
		LineItems: []TransferLineItem{
			{UUID: "li-1", InventoryItemID: "inventory-item/10", Status: TransferInTransit, Quantity: 7},
		},
	}

	deltas := TransferDeltas(previous, current)

	// No source location: only the destination side appears.
	require.Len(t, deltas, 1)
	assert.Equal(t, BucketDeltas{Incoming: 7}, deltas[DeltaKey{LocationID: "location/2", InventoryItemID: "inventory-item/10"}])
}

func TestTransferDeltasPartialSplitLines(t *testing.T) {
	// A partial receipt is modelled as two line items replacing one.
	previous := TransferSnapshot{
		FromLocationID: "location/1",
		ToLocationID:   "location/2",
		LineItems: []TransferLineItem{
			{UUID: "li-1", InventoryItemID: "inventory-item/10", Status: TransferInTransit, Quantity: 10},
		},
	}
	current := TransferSnapshot{
		FromLocationID: "location/1",
		ToLocationID:   "location/2",
		LineItems: []TransferLineItem{
			{UUID: "li-2", InventoryItemID: "inventory-item/10", Status: TransferReceived, Quantity: 6},
			{UUID: "li-3", InventoryItemID: "inventory-item/10", Status: TransferInTransit, Quantity: 4},
		},
	}

	deltas := TransferDeltas(previous, current)

	require.Len(t, deltas, 1)
	assert.Equal(t, BucketDeltas{Incoming: -6, Available: 6}, deltas[DeltaKey{LocationID: "location/2", InventoryItemID: "inventory-item/10"}])
}

func TestCombineDeltasMatchesEndToEnd(t *testing.T) {
	base := TransferSnapshot{FromLocationID: "location/1", ToLocationID: "location/2"}
	transit := TransferSnapshot{
		FromLocationID: "location/1",
		ToLocationID:   "location/2",
		LineItems: []TransferLineItem{
			{UUID: "li-1", InventoryItemID: "inventory-item/10", Status: TransferInTransit, Quantity: 5},
		},
	}
	received := TransferSnapshot{
		FromLocationID: "location/1",
		ToLocationID:   "location/2",
		LineItems: []TransferLineItem{
			{UUID: "li-1", InventoryItemID: "inventory-item/10", Status: TransferReceived, Quantity: 5},
		},
	}

	chained := CombineDeltas(
		TransferDeltas(base, transit),
		TransferDeltas(transit, received),
	)
	direct := TransferDeltas(base, received)

	assert.Equal(t, direct, chained)
}

func TestCombineDeltasDropsCancelledKeys(t *testing.T) {
	forward := map[DeltaKey]BucketDeltas{
		{LocationID: "location/1", InventoryItemID: "inventory-item/10"}: {Available: -5},
	}
	backward := map[DeltaKey]BucketDeltas{
		{LocationID: "location/1", InventoryItemID: "inventory-item/10"}: {Available: 5},
	}

	assert.Empty(t, CombineDeltas(forward, backward))
}
