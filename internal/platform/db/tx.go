package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// CodeUniqueViolation is raised when a unique index rejects a row.
	CodeUniqueViolation = "23505"
	// CodeForeignKeyViolation is raised when a referenced row is missing.
	CodeForeignKeyViolation = "23503"
	// CodeSerializationFailure is raised when a transaction cannot be serialised.
	CodeSerializationFailure = "40001"
	// CodeDeadlockDetected is raised when postgres breaks a lock cycle.
	CodeDeadlockDetected = "40P01"
)

// TxOptions tunes WithTx behaviour.
type TxOptions struct {
	IsoLevel pgx.TxIsoLevel
	Retries  int
	Backoff  time.Duration
}

// DefaultTxOptions runs at read committed and retries transient conflicts twice.
func DefaultTxOptions() TxOptions {
	return TxOptions{IsoLevel: pgx.ReadCommitted, Retries: 2, Backoff: 25 * time.Millisecond}
}

// WithTx executes a function within a transaction. Serialization failures and
// deadlocks restart the whole function up to opts.Retries times.
func WithTx(ctx context.Context, pool *pgxpool.Pool, opts TxOptions, fn func(pgx.Tx) error) error {
	if pool == nil {
		return errors.New("platform/db: pool not initialised")
	}
	attempt := 0
	for {
		err := runTx(ctx, pool, opts.IsoLevel, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt >= opts.Retries {
			return err
		}
		attempt++
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.Backoff * time.Duration(attempt)):
		}
	}
}

func runTx(ctx context.Context, pool *pgxpool.Pool, iso pgx.TxIsoLevel, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// IsRetryable reports whether err is a transient conflict worth retrying.
func IsRetryable(err error) bool {
	code := ErrorCode(err)
	return code == CodeSerializationFailure || code == CodeDeadlockDetected
}

// ErrorCode returns the SQLSTATE of a postgres error, or "".
func ErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation reports whether err violates the named unique constraint.
// An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != CodeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
