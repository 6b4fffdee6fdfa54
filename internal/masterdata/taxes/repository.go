package taxes

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
	"github.com/odyssey-erp/gstbooks/internal/platform/db"
)

const codeExclusionViolation = "23P01"

// Store reads and writes GST rates.
type Store interface {
	RatesFor(ctx context.Context, hsn string) ([]Rate, error)
	RatesForCodes(ctx context.Context, codes []string) ([]Rate, error)
	InsertRates(ctx context.Context, rates []Rate) error
}

type repository struct {
	pool *pgxpool.Pool
	opts db.TxOptions
}

// NewRepository returns the postgres backed Store.
func NewRepository(pool *pgxpool.Pool, opts db.TxOptions) Store {
	return &repository{pool: pool, opts: opts}
}

const rateColumns = `id, hsn_sac, rate, cgst_rate, sgst_rate, igst_rate, cess_rate, effective_from, effective_to`

func scanRates(rows pgx.Rows) ([]Rate, error) {
	defer rows.Close()
	var out []Rate
	for rows.Next() {
		var r Rate
		if err := rows.Scan(&r.ID, &r.HSNSAC, &r.GST, &r.CGST, &r.SGST, &r.IGST, &r.Cess, &r.EffectiveFrom, &r.EffectiveTo); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (r *repository) RatesFor(ctx context.Context, hsn string) ([]Rate, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+rateColumns+` FROM gst_rates WHERE hsn_sac=$1 ORDER BY effective_from`, hsn)
	if err != nil {
		return nil, err
	}
	return scanRates(rows)
}

func (r *repository) RatesForCodes(ctx context.Context, codes []string) ([]Rate, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+rateColumns+` FROM gst_rates WHERE hsn_sac = ANY($1) ORDER BY hsn_sac, effective_from`, codes)
	if err != nil {
		return nil, err
	}
	return scanRates(rows)
}

func (r *repository) InsertRates(ctx context.Context, rates []Rate) error {
	return db.WithTx(ctx, r.pool, r.opts, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rate := range rates {
			batch.Queue(`INSERT INTO gst_rates (hsn_sac, rate, cgst_rate, sgst_rate, igst_rate, cess_rate, effective_from, effective_to)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, rate.HSNSAC, rate.GST, rate.CGST, rate.SGST, rate.IGST, rate.Cess, rate.EffectiveFrom, rate.EffectiveTo)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == codeExclusionViolation {
				return &shared.Error{Kind: shared.ErrValidation, Reason: "rate_overlap", Detail: pgErr.Detail}
			}
			return err
		}
		return nil
	})
}
