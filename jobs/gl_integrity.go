package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/odyssey-erp/gstbooks/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Imbalance is a posted or cancelled voucher whose entries do not net to zero.
type Imbalance struct {
	TenantID  int64
	VoucherID int64
	Number    string
	Entries   int
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// IntegrityStore finds vouchers that break the double-entry invariant.
type IntegrityStore interface {
	UnbalancedVouchers(ctx context.Context, tenantID int64, since time.Time) ([]Imbalance, error)
}

// PgIntegrityStore scans voucher entries in Postgres.
type PgIntegrityStore struct {
	pool *pgxpool.Pool
}

// NewPgIntegrityStore constructs the Postgres integrity store.
func NewPgIntegrityStore(pool *pgxpool.Pool) *PgIntegrityStore {
	return &PgIntegrityStore{pool: pool}
}

// UnbalancedVouchers lists non-draft vouchers with no entries or with
// differing debit and credit totals.
func (s *PgIntegrityStore) UnbalancedVouchers(ctx context.Context, tenantID int64, since time.Time) ([]Imbalance, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("gl integrity: pool not configured")
	}
	rows, err := s.pool.Query(ctx, `SELECT v.tenant_id, v.id, COALESCE(v.voucher_number, ''), COUNT(e.id),
       COALESCE(SUM(e.debit_amount), 0), COALESCE(SUM(e.credit_amount), 0)
FROM vouchers v
LEFT JOIN voucher_entries e ON e.voucher_id = v.id
WHERE v.status IN ('POSTED','CANCELLED')
  AND ($1::bigint = 0 OR v.tenant_id = $1)
  AND v.updated_at >= $2
GROUP BY v.tenant_id, v.id, v.voucher_number
HAVING COUNT(e.id) = 0 OR COALESCE(SUM(e.debit_amount), 0) <> COALESCE(SUM(e.credit_amount), 0)
ORDER BY v.tenant_id, v.id`, tenantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Imbalance
	for rows.Next() {
		var im Imbalance
		if err := rows.Scan(&im.TenantID, &im.VoucherID, &im.Number, &im.Entries, &im.Debit, &im.Credit); err != nil {
			return nil, err
		}
		out = append(out, im)
	}
	return out, rows.Err()
}

// GLIntegrityJob reports vouchers whose entries do not balance. Violations are
// logged and counted; the task itself only fails when the scan cannot run.
type GLIntegrityJob struct {
	Store   IntegrityStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewGLIntegrityJob wires the integrity scan handler.
func NewGLIntegrityJob(store IntegrityStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the integrity scan for the task payload.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("gl integrity: handler not configured")
	}
	var payload GLIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run scans once and returns the violations found.
func (j *GLIntegrityJob) Run(ctx context.Context, payload GLIntegrityPayload) (violations []Imbalance, err error) {
	tracker := j.metrics().Track(TaskGLIntegrityScan)
	defer func() {
		err = tracker.End(err)
	}()

	start := j.now()
	logger := j.logger().With(
		slog.Int64("tenant_id", payload.TenantID),
		slog.Int("lookback_days", payload.LookbackDays),
	)
	logger.Info("starting gl integrity scan")

	violations, err = j.Store.UnbalancedVouchers(ctx, payload.TenantID, payload.Since(start))
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return nil, err
	}

	perTenant := make(map[int64]int)
	for _, v := range violations {
		logger.Error("unbalanced voucher",
			slog.Int64("tenant_id", v.TenantID),
			slog.Int64("voucher_id", v.VoucherID),
			slog.String("voucher_number", v.Number),
			slog.Int("entries", v.Entries),
			slog.String("debit", v.Debit.StringFixed(2)),
			slog.String("credit", v.Credit.StringFixed(2)),
		)
		perTenant[v.TenantID]++
	}
	for tenant, n := range perTenant {
		j.metrics().AddViolations(tenant, n)
	}

	logger.Info("completed gl integrity scan",
		slog.Int("violations", len(violations)),
		slog.Duration("duration", time.Since(start)),
	)
	return violations, nil
}

func (j *GLIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskGLIntegrityScan))
	}
	return slog.Default().With(slog.String("job", TaskGLIntegrityScan))
}

func (j *GLIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *GLIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
