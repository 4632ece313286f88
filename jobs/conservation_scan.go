package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MetricsPort records job outcomes.
type MetricsPort interface {
	ObserveJobRun(job, status string)
}

// ConservationScanJob verifies that every MOVE mutation conserves quantity:
// the item rows of one mutation must sum to zero. The scan only reads; ledger
// rows are append-only and a violation is reported, never repaired.
type ConservationScanJob struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics MetricsPort
}

// NewConservationScanJob builds the job.
func NewConservationScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics MetricsPort) *ConservationScanJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConservationScanJob{pool: pool, logger: logger, metrics: metrics}
}

// Run scans mutations created within the window and logs every violation.
// It returns an error only when the scan itself could not complete.
func (j *ConservationScanJob) Run(ctx context.Context, window time.Duration) error {
	if window <= 0 {
		window = 24 * time.Hour
	}
	cutoff := time.Now().UTC().Add(-window)
	rows, err := j.pool.Query(ctx, `SELECT m.id, COALESCE(SUM(i.quantity), 0) AS net
FROM inventory_mutations m
JOIN inventory_mutation_items i ON i.mutation_id = m.id
WHERE m.mutation_type = 'MOVE' AND m.created_at >= $1
GROUP BY m.id
HAVING COALESCE(SUM(i.quantity), 0) <> 0`, cutoff)
	if err != nil {
		j.observe("error")
		return err
	}
	defer rows.Close()

	violations := 0
	for rows.Next() {
		var mutationID, net int64
		if err := rows.Scan(&mutationID, &net); err != nil {
			j.observe("error")
			return err
		}
		violations++
		j.logger.Error("move mutation does not conserve quantity",
			slog.Int64("mutation_id", mutationID),
			slog.Int64("net_quantity", net),
		)
	}
	if err := rows.Err(); err != nil {
		j.observe("error")
		return err
	}
	if violations > 0 {
		j.observe("violations")
	} else {
		j.observe("ok")
	}
	j.logger.Info("conservation scan finished",
		slog.Int("violations", violations),
		slog.Duration("window", window),
	)
	return nil
}

// HandlerFunc adapts the job to an Asynq handler.
func (j *ConservationScanJob) HandlerFunc() asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ConservationScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		return j.Run(ctx, payload.Window)
	}
}

func (j *ConservationScanJob) observe(status string) {
	if j.metrics != nil {
		j.metrics.ObserveJobRun("conservation_scan", status)
	}
}
