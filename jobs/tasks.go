package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskConservationScan re-checks the MOVE conservation invariant over
	// recent audit rows.
	TaskConservationScan = "ledger:conservation_scan"
)

// ConservationScanPayload bounds the scan to mutations created within Window
// of the task run.
type ConservationScanPayload struct {
	Window time.Duration `json:"window"`
}

// NewConservationScanTask constructs an Asynq task.
func NewConservationScanTask(payload ConservationScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskConservationScan, data), nil
}
