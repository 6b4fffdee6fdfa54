package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type recordingExec struct {
	sql  string
	args []any
	err  error
}

func (r *recordingExec) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql = sql
	r.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), r.err
}

func sampleLog() AuditLog {
	return AuditLog{
		TenantID:   1,
		ActorID:    9,
		Action:     "voucher.post",
		EntityType: "voucher",
		EntityID:   "42",
		OldValues:  map[string]any{"status": "DRAFT"},
		NewValues:  map[string]any{"status": "POSTED", "voucher_number": "SAL/000001"},
		At:         time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestDigestIsStable(t *testing.T) {
	a, err := sampleLog().DigestHex()
	require.NoError(t, err)
	b, err := sampleLog().DigestHex()
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 64)

	changed := sampleLog()
	changed.NewValues["status"] = "CANCELLED"
	c, err := changed.DigestHex()
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestWriteAuditInsertsRow(t *testing.T) {
	exec := &recordingExec{}
	require.NoError(t, WriteAudit(context.Background(), exec, sampleLog()))
	require.Contains(t, exec.sql, "INSERT INTO audit_logs")
	require.Len(t, exec.args, 9)
	require.Equal(t, int64(1), exec.args[0])
	require.Equal(t, "voucher", exec.args[3])
}

func TestWriteAuditPropagatesFailure(t *testing.T) {
	exec := &recordingExec{err: errors.New("disk full")}
	require.EqualError(t, WriteAudit(context.Background(), exec, sampleLog()), "disk full")
}

func TestWriteAuditRequiresFields(t *testing.T) {
	log := sampleLog()
	log.EntityID = ""
	require.Error(t, WriteAudit(context.Background(), &recordingExec{}, log))
	log = sampleLog()
	log.TenantID = 0
	require.Error(t, WriteAudit(context.Background(), &recordingExec{}, log))
}
