package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/gstbooks/internal/shared"
)

type memoryKeys struct {
	claimed  map[string]bool
	released []string
}

func (m *memoryKeys) CheckAndInsert(ctx context.Context, tenantID int64, scope, key string) error {
	id := scope + "|" + key
	if m.claimed[id] {
		return shared.ErrIdempotencyConflict
	}
	m.claimed[id] = true
	return nil
}

func (m *memoryKeys) Delete(ctx context.Context, tenantID int64, scope, key string) error {
	id := scope + "|" + key
	delete(m.claimed, id)
	m.released = append(m.released, id)
	return nil
}

func TestIdempotencyMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	keys := &memoryKeys{claimed: map[string]bool{}}
	calls := 0
	fail := false

	r := chi.NewRouter()
	r.Use(RequirePrincipal(logger))
	r.Use(Idempotency(keys, logger))
	r.Post("/vouchers", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if fail {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	send := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/vouchers", nil)
		req.Header.Set(HeaderTenantID, "3")
		req.Header.Set(HeaderActorID, "8")
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusCreated, send("k-1"))
	require.Equal(t, http.StatusConflict, send("k-1"))
	require.Equal(t, 1, calls)

	require.Equal(t, http.StatusCreated, send(""))
	require.Equal(t, http.StatusCreated, send(""))
	require.Equal(t, 3, calls)

	fail = true
	require.Equal(t, http.StatusUnprocessableEntity, send("k-2"))
	require.Equal(t, []string{"/vouchers|k-2"}, keys.released)
	fail = false
	require.Equal(t, http.StatusCreated, send("k-2"))
}
