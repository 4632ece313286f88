package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Bucket names a partition of an inventory item's quantity at one location.
type Bucket string

const (
	// BucketIncoming holds stock that is on its way to a location.
	BucketIncoming Bucket = "incoming"
	// BucketAvailable holds sellable stock.
	BucketAvailable Bucket = "available"
	// BucketCommitted holds stock promised to orders.
	BucketCommitted Bucket = "committed"
	// BucketReserved holds stock held back for reservations.
	BucketReserved Bucket = "reserved"
	// BucketDamaged holds stock that cannot be sold.
	BucketDamaged Bucket = "damaged"
	// BucketSafetyStock holds the safety buffer excluded from sale.
	BucketSafetyStock Bucket = "safety_stock"
	// BucketQualityControl holds stock awaiting inspection.
	BucketQualityControl Bucket = "quality_control"
)

// IsValid reports whether the bucket is one of the known quantity names.
func (b Bucket) IsValid() bool {
	switch b {
	case BucketIncoming, BucketAvailable, BucketCommitted, BucketReserved,
		BucketDamaged, BucketSafetyStock, BucketQualityControl:
		return true
	default:
		return false
	}
}

// MutationType enumerates the supported ledger operations.
type MutationType string

const (
	// MutationMove transfers an absolute quantity between two buckets.
	MutationMove MutationType = "MOVE"
	// MutationSet writes an absolute bucket quantity, optionally guarded by a compare value.
	MutationSet MutationType = "SET"
	// MutationAdjust applies a signed delta to a bucket.
	MutationAdjust MutationType = "ADJUST"
)

// InitiatorType identifies the kind of business document that caused a mutation.
type InitiatorType string

const (
	InitiatorPurchaseOrder        InitiatorType = "PURCHASE_ORDER"
	InitiatorPurchaseOrderReceipt InitiatorType = "PURCHASE_ORDER_RECEIPT"
	InitiatorStockTransfer        InitiatorType = "STOCK_TRANSFER"
	InitiatorCycleCount           InitiatorType = "CYCLE_COUNT"
	InitiatorWorkOrder            InitiatorType = "WORK_ORDER"
	InitiatorUnknown              InitiatorType = "UNKNOWN"
)

// IsValid reports whether the initiator type is known.
func (t InitiatorType) IsValid() bool {
	switch t {
	case InitiatorPurchaseOrder, InitiatorPurchaseOrderReceipt, InitiatorStockTransfer,
		InitiatorCycleCount, InitiatorWorkOrder, InitiatorUnknown:
		return true
	default:
		return false
	}
}

// Initiator names the document or process behind a mutation.
type Initiator struct {
	Type InitiatorType
	Name string
}

// Reason codes forwarded verbatim to the quantity store.
const (
	ReasonCorrection          = "correction"
	ReasonCycleCountAvailable = "cycle_count_available"
	ReasonDamaged             = "damaged"
	ReasonMovementCreated     = "movement_created"
	ReasonMovementUpdated     = "movement_updated"
	ReasonMovementReceived    = "movement_received"
	ReasonMovementCanceled    = "movement_canceled"
	ReasonOther               = "other"
	ReasonPromotion           = "promotion"
	ReasonQualityControl      = "quality_control"
	ReasonReceived            = "received"
	ReasonReservationCreated  = "reservation_created"
	ReasonReservationDeleted  = "reservation_deleted"
	ReasonReservationUpdated  = "reservation_updated"
	ReasonRestock             = "restock"
	ReasonSafetyStock         = "safety_stock"
	ReasonShrinkage           = "shrinkage"
)

// Mutation is the immutable audit header for one ledger operation.
type Mutation struct {
	ID            int64
	Shop          string
	Type          MutationType
	InitiatorType InitiatorType
	InitiatorName string
	CreatedAt     time.Time
}

// MutationItem is one audit line belonging to a mutation.
//
// MOVE writes two items per change: the source bucket with the negated
// quantity and the destination bucket with the positive quantity. SET
// populates Quantity and, when supplied, CompareQuantity. ADJUST populates
// Delta only.
type MutationItem struct {
	MutationID      int64
	InventoryItemID string
	LocationID      string
	QuantityName    Bucket
	Quantity        *int
	Delta           *int
	CompareQuantity *int
}

// MoveChange transfers an absolute quantity between two buckets at one location.
type MoveChange struct {
	LocationID      string `json:"locationId"`
	InventoryItemID string `json:"inventoryItemId"`
	Quantity        int    `json:"quantity"`
	From            Bucket `json:"from"`
	To              Bucket `json:"to"`
}

// SetChange writes an absolute bucket quantity for one (item, location) pair.
// CompareQuantity, when present, is the value the caller last observed; the
// quantity store rejects the whole call if it no longer matches.
type SetChange struct {
	LocationID      string `json:"locationId"`
	InventoryItemID string `json:"inventoryItemId"`
	Quantity        int    `json:"quantity"`
	CompareQuantity *int   `json:"compareQuantity,omitempty"`
}

// AdjustChange applies a signed delta to one (item, location) pair.
type AdjustChange struct {
	LocationID      string `json:"locationId"`
	InventoryItemID string `json:"inventoryItemId"`
	Delta           int    `json:"delta"`
}

// MoveRequest is the envelope for a MOVE operation.
type MoveRequest struct {
	Shop      string
	Initiator Initiator
	Reason    string
	Changes   []MoveChange
}

// SetRequest is the envelope for a SET operation against a single bucket.
type SetRequest struct {
	Shop      string
	Initiator Initiator
	Reason    string
	Name      Bucket
	Changes   []SetChange
}

// AdjustRequest is the envelope for an ADJUST operation against a single bucket.
type AdjustRequest struct {
	Shop      string
	Initiator Initiator
	Reason    string
	Name      Bucket
	Changes   []AdjustChange
}

// ErrUnknownBucket indicates a quantity name outside the Bucket enum.
var ErrUnknownBucket = errors.New("ledger: unknown quantity bucket")

// ErrSameBucket indicates a move between identical buckets.
var ErrSameBucket = errors.New("ledger: move requires two distinct buckets")

// ErrInvalidQuantity indicates a non-positive move quantity.
var ErrInvalidQuantity = errors.New("ledger: quantity must be positive")

// ErrUnknownInitiator indicates an initiator type outside the enum.
var ErrUnknownInitiator = errors.New("ledger: unknown initiator type")

// ErrStoreUnavailable indicates the quantity store could not be reached or
// answered with a non-business failure. The audit row for the attempt has
// already been committed when this is returned.
var ErrStoreUnavailable = errors.New("ledger: quantity store unavailable")

// ErrCompareQuantityStale indicates the quantity store rejected a SET because
// a supplied compare quantity no longer matched its current value.
var ErrCompareQuantityStale = errors.New("ledger: compare quantity stale")

const staleCompareCode = "COMPARE_QUANTITY_STALE"

// UserError is one structured rejection reported by the quantity store.
type UserError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// UserErrors aggregates the rejections of one quantity store call. The store
// applies a call atomically, so the presence of any user error means nothing
// from that call landed.
type UserErrors []UserError

// Error implements the error interface.
func (e UserErrors) Error() string {
	if len(e) == 0 {
		return "ledger: quantity store rejected mutation"
	}
	msgs := make([]string, 0, len(e))
	for _, ue := range e {
		msgs = append(msgs, fmt.Sprintf("%s: %s", ue.Code, ue.Message))
	}
	return "ledger: quantity store rejected mutation: " + strings.Join(msgs, "; ")
}

// Is lets callers match ErrCompareQuantityStale through errors.Is when any
// rejection carries the stale compare code.
func (e UserErrors) Is(target error) bool {
	if target != ErrCompareQuantityStale {
		return false
	}
	for _, ue := range e {
		if ue.Code == staleCompareCode {
			return true
		}
	}
	return false
}
