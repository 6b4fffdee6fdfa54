package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

// TaskTypeEInvoiceGenerate carries posted sales vouchers to the e-invoice worker.
const TaskTypeEInvoiceGenerate = "einvoice:generate"

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EInvoiceLine is one taxable line of a posted invoice.
type EInvoiceLine struct {
	LineNo   int             `json:"line_no"`
	ItemName string          `json:"item_name"`
	HSNSAC   string          `json:"hsn_sac"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit,omitempty"`
	Rate     decimal.Decimal `json:"rate"`
	Taxable  decimal.Decimal `json:"taxable_amount"`
	CGST     decimal.Decimal `json:"cgst_amount"`
	SGST     decimal.Decimal `json:"sgst_amount"`
	IGST     decimal.Decimal `json:"igst_amount"`
	Cess     decimal.Decimal `json:"cess_amount"`
	Total    decimal.Decimal `json:"total_amount"`
}

// VoucherPostedEvent is the compliance payload for a posted sales voucher.
type VoucherPostedEvent struct {
	TenantID      int64           `json:"tenant_id"`
	VoucherID     int64           `json:"voucher_id"`
	VoucherNumber string          `json:"voucher_number"`
	VoucherDate   time.Time       `json:"voucher_date"`
	PartyGSTIN    string          `json:"party_gstin,omitempty"`
	PlaceOfSupply string          `json:"place_of_supply"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	LineItems     []EInvoiceLine  `json:"line_items"`
}

// SourceID derives a stable id for the event so a retried enqueue of the
// same voucher collapses into one task.
func (e VoucherPostedEvent) SourceID() uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("EINVOICE:%d:%d", e.TenantID, e.VoucherID)))
}

// NewEInvoiceTask encodes evt as an asynq task.
func NewEInvoiceTask(evt VoucherPostedEvent) (*asynq.Task, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeEInvoiceGenerate, data), nil
}

// DecodeEInvoiceTask decodes the payload written by NewEInvoiceTask.
func DecodeEInvoiceTask(t *asynq.Task) (VoucherPostedEvent, error) {
	var evt VoucherPostedEvent
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return VoucherPostedEvent{}, fmt.Errorf("integration: decode einvoice payload: %w", err)
	}
	return evt, nil
}

// Hooks forwards posting events to the compliance queue.
type Hooks struct {
	client Enqueuer
	queue  string
	logger *slog.Logger
}

// NewHooks constructs integration hooks. A nil client disables forwarding.
func NewHooks(client Enqueuer, queue string, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	if queue == "" {
		queue = "default"
	}
	return &Hooks{client: client, queue: queue, logger: logger}
}

// HandleVoucherPosted enqueues the e-invoice generation task for evt.
func (h *Hooks) HandleVoucherPosted(ctx context.Context, evt VoucherPostedEvent) error {
	if h == nil || h.client == nil {
		return nil
	}
	if evt.TenantID == 0 || evt.VoucherID == 0 {
		return errors.New("integration: tenant and voucher id required")
	}
	if evt.VoucherNumber == "" {
		return errors.New("integration: voucher number required")
	}
	task, err := NewEInvoiceTask(evt)
	if err != nil {
		return err
	}
	_, err = h.client.EnqueueContext(ctx, task,
		asynq.Queue(h.queue),
		asynq.TaskID(evt.SourceID().String()),
		asynq.MaxRetry(5),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("integration: enqueue einvoice: %w", err)
	}
	h.logger.Info("einvoice enqueued",
		slog.Int64("tenant_id", evt.TenantID),
		slog.Int64("voucher_id", evt.VoucherID),
		slog.String("voucher_number", evt.VoucherNumber))
	return nil
}
