package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/gstbooks/internal/integration"
	jobmetrics "github.com/odyssey-erp/gstbooks/internal/jobs"
	"github.com/odyssey-erp/gstbooks/internal/money"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeStore struct {
	out      []Imbalance
	err      error
	tenantID int64
	since    time.Time
}

func (f *fakeStore) UnbalancedVouchers(ctx context.Context, tenantID int64, since time.Time) ([]Imbalance, error) {
	f.tenantID, f.since = tenantID, since
	return f.out, f.err
}

func TestGLIntegrityCountsViolationsPerTenant(t *testing.T) {
	store := &fakeStore{out: []Imbalance{
		{TenantID: 1, VoucherID: 10, Number: "SAL/000010", Entries: 3, Debit: decimal.NewFromInt(100), Credit: decimal.NewFromInt(90)},
		{TenantID: 1, VoucherID: 11, Number: "JV-2", Debit: decimal.Zero, Credit: decimal.Zero},
		{TenantID: 7, VoucherID: 3, Number: "RCT/000003", Entries: 2, Debit: decimal.NewFromInt(5), Credit: decimal.NewFromInt(6)},
	}}
	reg := prometheus.NewRegistry()
	job := NewGLIntegrityJob(store, quiet, jobmetrics.NewMetrics(reg))
	now := time.Date(2026, 4, 30, 2, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }

	task, err := NewGLIntegrityTask(GLIntegrityPayload{LookbackDays: 7})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, int64(0), store.tenantID)
	require.Equal(t, now.AddDate(0, 0, -7), store.since)

	expected := `
# HELP gstbooks_gl_integrity_violations_total Vouchers whose debit and credit totals disagree, by tenant.
# TYPE gstbooks_gl_integrity_violations_total counter
gstbooks_gl_integrity_violations_total{tenant="1"} 2
gstbooks_gl_integrity_violations_total{tenant="7"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "gstbooks_gl_integrity_violations_total"))
}

func TestGLIntegrityCleanLedger(t *testing.T) {
	store := &fakeStore{}
	reg := prometheus.NewRegistry()
	job := NewGLIntegrityJob(store, quiet, jobmetrics.NewMetrics(reg))

	violations, err := job.Run(context.Background(), GLIntegrityPayload{TenantID: 3})
	require.NoError(t, err)
	require.Empty(t, violations)
	require.Equal(t, int64(3), store.tenantID)
	require.True(t, store.since.IsZero(), "no lookback scans the whole ledger")
	n, err := testutil.GatherAndCount(reg, "gstbooks_gl_integrity_violations_total")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestGLIntegrityScanFailure(t *testing.T) {
	job := NewGLIntegrityJob(&fakeStore{err: errors.New("connection refused")}, quiet, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	_, err := job.Run(context.Background(), GLIntegrityPayload{})
	require.Error(t, err)

	bad := asynq.NewTask(TaskGLIntegrityScan, []byte("{"))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
}

func sampleEvent() integration.VoucherPostedEvent {
	return integration.VoucherPostedEvent{
		TenantID:      1,
		VoucherID:     42,
		VoucherNumber: "SAL/000001",
		VoucherDate:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		PlaceOfSupply: "27",
		TotalAmount:   decimal.NewFromInt(1180),
		LineItems: []integration.EInvoiceLine{{
			LineNo: 1, ItemName: "Laptop", HSNSAC: "8471",
			Quantity: decimal.NewFromInt(10), Rate: decimal.NewFromInt(100),
			Taxable: decimal.NewFromInt(1000), CGST: decimal.NewFromInt(90), SGST: decimal.NewFromInt(90),
			Total: decimal.NewFromInt(1180),
		}},
	}
}

type recordingSubmitter struct {
	got []integration.VoucherPostedEvent
	err error
}

func (r *recordingSubmitter) Submit(ctx context.Context, evt integration.VoucherPostedEvent) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.got = append(r.got, evt)
	return "IRN-1", nil
}

func TestEInvoiceJobSubmitsConsistentPayload(t *testing.T) {
	sub := &recordingSubmitter{}
	job := NewEInvoiceJob(sub, money.Default(), quiet, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := integration.NewEInvoiceTask(sampleEvent())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, sub.got, 1)
	require.Equal(t, "SAL/000001", sub.got[0].VoucherNumber)
}

func TestEInvoiceJobRejectsInconsistentPayload(t *testing.T) {
	sub := &recordingSubmitter{}
	job := NewEInvoiceJob(sub, money.Default(), quiet, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	evt := sampleEvent()
	evt.TotalAmount = decimal.NewFromInt(1200)
	task, err := integration.NewEInvoiceTask(evt)
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)

	evt = sampleEvent()
	evt.LineItems[0].IGST = decimal.NewFromInt(1)
	task, err = integration.NewEInvoiceTask(evt)
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)

	require.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskEInvoiceGenerate, []byte("nope"))), asynq.SkipRetry)
	require.Empty(t, sub.got)
}

func TestEInvoiceJobRetriesSubmissionFailure(t *testing.T) {
	job := NewEInvoiceJob(&recordingSubmitter{err: errors.New("portal timeout")}, money.Default(), quiet, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := integration.NewEInvoiceTask(sampleEvent())
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)

	logOnly := NewEInvoiceJob(nil, money.Default(), quiet, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, logOnly.Handle(context.Background(), task))
}

type fakeInspector map[string]*asynq.QueueInfo

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	info, ok := f[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func TestHealthReportsEveryQueue(t *testing.T) {
	inspector := fakeInspector{QueueDefault: {Queue: QueueDefault, Pending: 4, Active: 1}}
	h := NewHandler(inspector, quiet, QueueDefault, "compliance")
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Queues []queueHealth `json:"queues"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, []queueHealth{
		{Queue: QueueDefault, Pending: 4, Active: 1},
		{Queue: "compliance"},
	}, body.Queues)
}

type fakePurger struct {
	retention time.Duration
	removed   int64
	err       error
}

func (f *fakePurger) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.retention = olderThan
	return f.removed, f.err
}

func TestIdempotencyCleanupDefaultsRetention(t *testing.T) {
	purger := &fakePurger{removed: 12}
	job := NewIdempotencyCleanupJob(purger, 0, quiet, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	require.Equal(t, 24*time.Hour, purger.retention)

	failing := NewIdempotencyCleanupJob(&fakePurger{err: errors.New("timeout")}, time.Hour, quiet, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.Error(t, failing.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
}
