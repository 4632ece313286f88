package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// StorePort abstracts the append-only audit ledger persistence.
type StorePort interface {
	RecordMutation(ctx context.Context, mutation Mutation, items []MutationItem) (int64, error)
	GetMutation(ctx context.Context, id int64) (Mutation, []MutationItem, error)
	ListByInitiator(ctx context.Context, shop string, initiator Initiator, limit int) ([]Mutation, error)
}

// QuantityStore abstracts the authoritative external inventory ledger. Calls
// may fail with UserErrors (business rejection, nothing applied) or with a
// transport failure wrapped in ErrStoreUnavailable.
type QuantityStore interface {
	Move(ctx context.Context, in MoveInstruction) error
	Set(ctx context.Context, in SetInstruction) error
	Adjust(ctx context.Context, in AdjustInstruction) error
}

// MoveInstruction is the batched MOVE payload for the quantity store.
type MoveInstruction struct {
	Reason               string
	ReferenceDocumentURI string
	Changes              []MoveChange
}

// SetInstruction is the batched SET payload for one bucket.
type SetInstruction struct {
	Name                 Bucket
	Reason               string
	ReferenceDocumentURI string
	Quantities           []SetChange
}

// AdjustInstruction is the batched ADJUST payload for one bucket.
type AdjustInstruction struct {
	Name                 Bucket
	Reason               string
	ReferenceDocumentURI string
	Changes              []AdjustChange
}

// MetricsPort records mutation outcomes for observability.
type MetricsPort interface {
	ObserveMutation(mutationType, outcome string)
}

// Mutation outcomes reported through MetricsPort.
const (
	OutcomeApplied        = "applied"
	OutcomeRejected       = "rejected"
	OutcomeStoreUnreached = "store_unreachable"
)

// Service is the mutation engine. It owns the audit ledger exclusively:
// document services never write ledger rows themselves.
type Service struct {
	store      StorePort
	quantities QuantityStore
	cache      *Cache
	metrics    MetricsPort
	logger     *slog.Logger
	now        func() time.Time
}

// NewService builds the mutation engine. cache and metrics may be nil.
func NewService(store StorePort, quantities QuantityStore, cache *Cache, metrics MetricsPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		quantities: quantities,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Move transfers absolute quantities between buckets. All changes share one
// audit header and reach the quantity store as a single batched call.
func (s *Service) Move(ctx context.Context, req MoveRequest) error {
	if len(req.Changes) == 0 {
		return nil
	}
	if err := validateInitiator(req.Initiator); err != nil {
		return err
	}
	items := make([]MutationItem, 0, len(req.Changes)*2)
	for _, change := range req.Changes {
		if !change.From.IsValid() || !change.To.IsValid() {
			return fmt.Errorf("%w: %q -> %q", ErrUnknownBucket, change.From, change.To)
		}
		if change.From == change.To {
			return fmt.Errorf("%w: %q", ErrSameBucket, change.From)
		}
		if change.Quantity <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidQuantity, change.Quantity)
		}
		fromQty := -change.Quantity
		toQty := change.Quantity
		items = append(items,
			MutationItem{
				InventoryItemID: change.InventoryItemID,
				LocationID:      change.LocationID,
				QuantityName:    change.From,
				Quantity:        &fromQty,
			},
			MutationItem{
				InventoryItemID: change.InventoryItemID,
				LocationID:      change.LocationID,
				QuantityName:    change.To,
				Quantity:        &toQty,
			},
		)
	}
	id, err := s.record(ctx, req.Shop, MutationMove, req.Initiator, items)
	if err != nil {
		return err
	}
	instruction := MoveInstruction{
		Reason:               req.Reason,
		ReferenceDocumentURI: ReferenceDocumentURI(req.Initiator, id),
		Changes:              req.Changes,
	}
	return s.finish(ctx, MutationMove, id, s.quantities.Move(ctx, instruction))
}

// Set writes absolute quantities for one bucket. Any stale compare quantity
// fails the whole call; the audit row for the attempt remains.
func (s *Service) Set(ctx context.Context, req SetRequest) error {
	if len(req.Changes) == 0 {
		return nil
	}
	if err := validateInitiator(req.Initiator); err != nil {
		return err
	}
	if !req.Name.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownBucket, req.Name)
	}
	items := make([]MutationItem, 0, len(req.Changes))
	for _, change := range req.Changes {
		qty := change.Quantity
		items = append(items, MutationItem{
			InventoryItemID: change.InventoryItemID,
			LocationID:      change.LocationID,
			QuantityName:    req.Name,
			Quantity:        &qty,
			CompareQuantity: change.CompareQuantity,
		})
	}
	id, err := s.record(ctx, req.Shop, MutationSet, req.Initiator, items)
	if err != nil {
		return err
	}
	instruction := SetInstruction{
		Name:                 req.Name,
		Reason:               req.Reason,
		ReferenceDocumentURI: ReferenceDocumentURI(req.Initiator, id),
		Quantities:           req.Changes,
	}
	return s.finish(ctx, MutationSet, id, s.quantities.Set(ctx, instruction))
}

// Adjust applies signed deltas to one bucket. Concurrent adjusts commute, so
// no compare value exists for this operation.
func (s *Service) Adjust(ctx context.Context, req AdjustRequest) error {
	if len(req.Changes) == 0 {
		return nil
	}
	if err := validateInitiator(req.Initiator); err != nil {
		return err
	}
	if !req.Name.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownBucket, req.Name)
	}
	items := make([]MutationItem, 0, len(req.Changes))
	for _, change := range req.Changes {
		delta := change.Delta
		items = append(items, MutationItem{
			InventoryItemID: change.InventoryItemID,
			LocationID:      change.LocationID,
			QuantityName:    req.Name,
			Delta:           &delta,
		})
	}
	id, err := s.record(ctx, req.Shop, MutationAdjust, req.Initiator, items)
	if err != nil {
		return err
	}
	instruction := AdjustInstruction{
		Name:                 req.Name,
		Reason:               req.Reason,
		ReferenceDocumentURI: ReferenceDocumentURI(req.Initiator, id),
		Changes:              req.Changes,
	}
	return s.finish(ctx, MutationAdjust, id, s.quantities.Adjust(ctx, instruction))
}

// defaultTimelineLimit bounds list queries that do not name a limit.
const defaultTimelineLimit = 100

// MutationsByInitiator lists audit headers for one initiator, newest first.
// The limit is normalised before the cache lookup so the default-limit query
// shares one cache entry regardless of how the caller spelled it.
func (s *Service) MutationsByInitiator(ctx context.Context, shop string, initiator Initiator, limit int) ([]Mutation, error) {
	if err := validateInitiator(initiator); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultTimelineLimit
	}
	if cached, ok := s.cache.GetTimeline(ctx, shop, initiator, limit); ok {
		return cached, nil
	}
	mutations, err := s.store.ListByInitiator(ctx, shop, initiator, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list mutations: %w", err)
	}
	s.cache.SetTimeline(ctx, shop, initiator, limit, mutations)
	return mutations, nil
}

// MutationByID loads one audit header with its items.
func (s *Service) MutationByID(ctx context.Context, id int64) (Mutation, []MutationItem, error) {
	return s.store.GetMutation(ctx, id)
}

// record persists the audit header and items. The store commits on its own
// connection before this returns; a failing external call afterwards leaves
// the row in place as the record of the attempt.
func (s *Service) record(ctx context.Context, shop string, mutationType MutationType, initiator Initiator, items []MutationItem) (int64, error) {
	header := Mutation{
		Shop:          shop,
		Type:          mutationType,
		InitiatorType: initiator.Type,
		InitiatorName: initiator.Name,
		CreatedAt:     s.now().UTC(),
	}
	id, err := s.store.RecordMutation(ctx, header, items)
	if err != nil {
		return 0, fmt.Errorf("ledger: record mutation: %w", err)
	}
	s.cache.Bump(ctx)
	return id, nil
}

// finish translates the external call outcome into the caller-facing result.
func (s *Service) finish(ctx context.Context, mutationType MutationType, mutationID int64, err error) error {
	if err == nil {
		s.observe(mutationType, OutcomeApplied)
		return nil
	}
	var userErrs UserErrors
	if errors.As(err, &userErrs) {
		s.observe(mutationType, OutcomeRejected)
		s.logger.Warn("quantity store rejected mutation",
			slog.Int64("mutation_id", mutationID),
			slog.String("type", string(mutationType)),
			slog.Int("user_errors", len(userErrs)),
		)
		return err
	}
	s.observe(mutationType, OutcomeStoreUnreached)
	s.logger.Error("quantity store call failed after audit commit",
		slog.Int64("mutation_id", mutationID),
		slog.String("type", string(mutationType)),
		slog.Any("error", err),
	)
	return err
}

func (s *Service) observe(mutationType MutationType, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveMutation(string(mutationType), outcome)
	}
}

func validateInitiator(initiator Initiator) error {
	if !initiator.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownInitiator, initiator.Type)
	}
	return nil
}
