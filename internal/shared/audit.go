package shared

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/blake2b"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	TenantID   int64          `json:"tenant_id"`
	ActorID    int64          `json:"user_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	OldValues  map[string]any `json:"old_values,omitempty"`
	NewValues  map[string]any `json:"new_values,omitempty"`
	At         time.Time      `json:"occurred_at"`
}

// Execer is satisfied by pgx.Tx and *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Validate checks required fields.
func (l AuditLog) Validate() error {
	if l.TenantID == 0 {
		return errors.New("audit log requires tenant")
	}
	if l.Action == "" || l.EntityType == "" || l.EntityID == "" {
		return errors.New("audit log requires action/entity_type/entity_id")
	}
	return nil
}

// Digest returns the BLAKE2b-256 hash of the record's JSON encoding.
// encoding/json sorts map keys, so equal records hash equally.
func (l AuditLog) Digest() ([]byte, error) {
	payload, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	sum := blake2b.Sum256(payload)
	return sum[:], nil
}

// DigestHex is Digest hex encoded.
func (l AuditLog) DigestHex() (string, error) {
	sum, err := l.Digest()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

// WriteAudit persists the record through exec, normally the caller's
// transaction so a failed write aborts the surrounding operation.
func WriteAudit(ctx context.Context, exec Execer, log AuditLog) error {
	if exec == nil {
		return errors.New("audit writer not initialised")
	}
	if err := log.Validate(); err != nil {
		return err
	}
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	digest, err := log.Digest()
	if err != nil {
		return err
	}
	oldJSON, err := marshalValues(log.OldValues)
	if err != nil {
		return err
	}
	newJSON, err := marshalValues(log.NewValues)
	if err != nil {
		return err
	}
	_, err = exec.Exec(ctx, `INSERT INTO audit_logs (tenant_id, actor_id, action, entity_type, entity_id, old_values, new_values, digest, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, log.TenantID, log.ActorID, log.Action, log.EntityType, log.EntityID, oldJSON, newJSON, digest, log.At)
	return err
}

func marshalValues(values map[string]any) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	return json.Marshal(values)
}
