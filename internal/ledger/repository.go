package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrMutationNotFound indicates a missing audit header.
var ErrMutationNotFound = errors.New("ledger: mutation not found")

// Repository persists the audit ledger in PostgreSQL. The tables are
// append-only: no method ever updates or deletes a row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordMutation inserts the header and its items in a single transaction
// opened directly on the pool. The commit happens here, never inside a
// caller's ambient transaction: a document save that rolls back after this
// point still leaves the attempt on record.
func (r *Repository) RecordMutation(ctx context.Context, mutation Mutation, items []MutationItem) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New("ledger repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var id int64
	err = tx.QueryRow(ctx, `INSERT INTO inventory_mutations (shop, mutation_type, initiator_type, initiator_name, created_at)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		mutation.Shop, string(mutation.Type), string(mutation.InitiatorType), mutation.InitiatorName, mutation.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ledger: insert mutation: %w", err)
	}
	for _, item := range items {
		_, err = tx.Exec(ctx, `INSERT INTO inventory_mutation_items (mutation_id, inventory_item_id, location_id, quantity_name, quantity, delta, compare_quantity)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			id, item.InventoryItemID, item.LocationID, string(item.QuantityName), item.Quantity, item.Delta, item.CompareQuantity)
		if err != nil {
			return 0, fmt.Errorf("ledger: insert mutation item: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ledger: commit: %w", err)
	}
	return id, nil
}

// GetMutation loads one audit header and its items.
func (r *Repository) GetMutation(ctx context.Context, id int64) (Mutation, []MutationItem, error) {
	if r == nil || r.pool == nil {
		return Mutation{}, nil, errors.New("ledger repository not initialised")
	}
	var mutation Mutation
	err := r.pool.QueryRow(ctx, `SELECT id, shop, mutation_type, initiator_type, initiator_name, created_at
FROM inventory_mutations WHERE id=$1`, id).
		Scan(&mutation.ID, &mutation.Shop, &mutation.Type, &mutation.InitiatorType, &mutation.InitiatorName, &mutation.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mutation{}, nil, ErrMutationNotFound
		}
		return Mutation{}, nil, fmt.Errorf("ledger: get mutation: %w", err)
	}
	rows, err := r.pool.Query(ctx, `SELECT mutation_id, inventory_item_id, location_id, quantity_name, quantity, delta, compare_quantity
FROM inventory_mutation_items WHERE mutation_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Mutation{}, nil, fmt.Errorf("ledger: get mutation items: %w", err)
	}
	defer rows.Close()
	var items []MutationItem
	for rows.Next() {
		var item MutationItem
		if err := rows.Scan(&item.MutationID, &item.InventoryItemID, &item.LocationID, &item.QuantityName, &item.Quantity, &item.Delta, &item.CompareQuantity); err != nil {
			return Mutation{}, nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return Mutation{}, nil, err
	}
	return mutation, items, nil
}

// ListByInitiator returns audit headers for one initiator, newest first.
func (r *Repository) ListByInitiator(ctx context.Context, shop string, initiator Initiator, limit int) ([]Mutation, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("ledger repository not initialised")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, shop, mutation_type, initiator_type, initiator_name, created_at
FROM inventory_mutations
WHERE shop=$1 AND initiator_type=$2 AND initiator_name=$3
ORDER BY created_at DESC, id DESC
LIMIT $4`, shop, string(initiator.Type), initiator.Name, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list mutations: %w", err)
	}
	defer rows.Close()
	mutations := []Mutation{}
	for rows.Next() {
		var mutation Mutation
		if err := rows.Scan(&mutation.ID, &mutation.Shop, &mutation.Type, &mutation.InitiatorType, &mutation.InitiatorName, &mutation.CreatedAt); err != nil {
			return nil, err
		}
		mutations = append(mutations, mutation)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return mutations, nil
}
