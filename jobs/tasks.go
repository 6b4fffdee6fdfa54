package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/gstbooks/internal/integration"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskEInvoiceGenerate hands posted sales vouchers to the e-invoice portal.
	TaskEInvoiceGenerate = integration.TaskTypeEInvoiceGenerate
	// TaskGLIntegrityScan verifies that every posted voucher balances.
	TaskGLIntegrityScan = "ledger:gl_integrity"
	// TaskIdempotencyCleanup expires stored Idempotency-Key claims.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// GLIntegrityPayload scopes an integrity scan. A zero tenant scans every
// tenant; a zero lookback scans the whole ledger.
type GLIntegrityPayload struct {
	TenantID     int64 `json:"tenant_id,omitempty"`
	LookbackDays int   `json:"lookback_days,omitempty"`
}

// Since returns the lower bound on voucher updates covered by the scan.
func (p GLIntegrityPayload) Since(now time.Time) time.Time {
	if p.LookbackDays <= 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -p.LookbackDays)
}

// NewGLIntegrityTask builds the integrity scan task.
func NewGLIntegrityTask(payload GLIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGLIntegrityScan, data), nil
}
