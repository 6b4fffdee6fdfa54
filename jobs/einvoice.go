package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/gstbooks/internal/integration"
	jobmetrics "github.com/odyssey-erp/gstbooks/internal/jobs"
	"github.com/odyssey-erp/gstbooks/internal/money"
)

// Submitter hands a posted invoice to the e-invoice portal and returns the
// portal's reference for it.
type Submitter interface {
	Submit(ctx context.Context, evt integration.VoucherPostedEvent) (string, error)
}

// EInvoiceJob consumes einvoice:generate tasks.
type EInvoiceJob struct {
	Submitter Submitter
	Policy    money.Policy
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewEInvoiceJob wires the e-invoice handler. A nil submitter only records
// the hand-off in the log.
func NewEInvoiceJob(submitter Submitter, policy money.Policy, logger *slog.Logger, metrics *jobmetrics.Metrics) *EInvoiceJob {
	return &EInvoiceJob{Submitter: submitter, Policy: policy, Logger: logger, Metrics: metrics}
}

// Handle decodes the event and forwards it.
func (j *EInvoiceJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil {
		return errors.New("einvoice: handler not configured")
	}
	tracker := j.metrics().Track(TaskEInvoiceGenerate)
	defer func() {
		err = tracker.End(err)
	}()

	evt, err := integration.DecodeEInvoiceTask(t)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	logger := j.logger().With(
		slog.Int64("tenant_id", evt.TenantID),
		slog.Int64("voucher_id", evt.VoucherID),
		slog.String("voucher_number", evt.VoucherNumber),
	)
	if err := checkEInvoice(evt); err != nil {
		logger.Error("rejecting einvoice payload", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	ref := ""
	if j.Submitter != nil {
		ref, err = j.Submitter.Submit(ctx, evt)
		if err != nil {
			logger.Warn("einvoice submission failed", slog.Any("error", err))
			return err
		}
	}
	logger.Info("einvoice generated",
		slog.String("total", j.Policy.Format(evt.TotalAmount)),
		slog.Int("lines", len(evt.LineItems)),
		slog.String("portal_ref", ref),
	)
	return nil
}

// checkEInvoice verifies the payload is self-consistent: the line totals sum
// to the voucher total and each line equals its taxable value plus taxes.
func checkEInvoice(evt integration.VoucherPostedEvent) error {
	if evt.TenantID == 0 || evt.VoucherID == 0 || evt.VoucherNumber == "" {
		return errors.New("tenant, voucher id and number are required")
	}
	if len(evt.LineItems) == 0 {
		return errors.New("no line items")
	}
	sum := decimal.Zero
	for _, l := range evt.LineItems {
		want := l.Taxable.Add(l.CGST).Add(l.SGST).Add(l.IGST).Add(l.Cess)
		if !want.Equal(l.Total) {
			return fmt.Errorf("line %d total %s, components sum to %s", l.LineNo, l.Total, want)
		}
		sum = sum.Add(l.Total)
	}
	if !sum.Equal(evt.TotalAmount) {
		return fmt.Errorf("voucher total %s, lines sum to %s", evt.TotalAmount, sum)
	}
	return nil
}

func (j *EInvoiceJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskEInvoiceGenerate))
	}
	return slog.Default().With(slog.String("job", TaskEInvoiceGenerate))
}

func (j *EInvoiceJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
