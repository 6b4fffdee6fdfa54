package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	accshared "github.com/odyssey-erp/gstbooks/internal/accounting/shared"
	"github.com/odyssey-erp/gstbooks/internal/platform/httpx"
	"github.com/odyssey-erp/gstbooks/internal/shared"
)

// HeaderIdempotencyKey lets callers retry a POST without repeating its effect.
const HeaderIdempotencyKey = "Idempotency-Key"

// KeyStore claims and releases idempotency keys.
type KeyStore interface {
	CheckAndInsert(ctx context.Context, tenantID int64, scope, key string) error
	Delete(ctx context.Context, tenantID int64, scope, key string) error
}

// Idempotency rejects a repeated POST carrying a key already used by the
// tenant on the same route. A key whose request failed is released so the
// caller can retry. Requests without the header pass through.
func Idempotency(store KeyStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderIdempotencyKey)
			p, ok := shared.PrincipalFromContext(r.Context())
			if store == nil || key == "" || r.Method != http.MethodPost || !ok {
				next.ServeHTTP(w, r)
				return
			}
			scope := r.URL.Path
			err := store.CheckAndInsert(r.Context(), p.TenantID, scope, key)
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.RespondError(w, logger, &accshared.Error{Kind: accshared.ErrInvalidState, Reason: "duplicate_request", Detail: "idempotency key " + key + " already used"})
				return
			}
			if err != nil {
				httpx.RespondError(w, logger, err)
				return
			}

			rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status >= http.StatusBadRequest {
				if err := store.Delete(context.WithoutCancel(r.Context()), p.TenantID, scope, key); err != nil {
					logger.Warn("release idempotency key",
						slog.Int64("tenant_id", p.TenantID),
						slog.String("scope", scope),
						slog.Any("error", err))
				}
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}
