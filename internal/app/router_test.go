package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/gstbooks/internal/money"
	"github.com/odyssey-erp/gstbooks/internal/shared"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("MONEY_ROUNDING", "")
	t.Setenv("PG_TX_RETRIES", "4")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 4, cfg.TxOptions().Retries)

	policy, err := cfg.MoneyPolicy()
	require.NoError(t, err)
	require.Equal(t, money.RoundHalfUp, policy.Mode)
	require.Equal(t, "INR", policy.Currency)

	t.Setenv("MONEY_ROUNDING", "banker")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestRequirePrincipal(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var got shared.Principal
	r := chi.NewRouter()
	r.Use(RequirePrincipal(logger))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		got, _ = shared.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		name   string
		tenant string
		actor  string
		status int
	}{
		{"both headers", "7", "42", http.StatusNoContent},
		{"missing tenant", "", "42", http.StatusUnauthorized},
		{"missing actor", "7", "", http.StatusUnauthorized},
		{"non numeric", "acme", "42", http.StatusUnauthorized},
		{"zero tenant", "0", "42", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.tenant != "" {
				req.Header.Set(HeaderTenantID, tc.tenant)
			}
			if tc.actor != "" {
				req.Header.Set(HeaderActorID, tc.actor)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			require.Equal(t, tc.status, rr.Code)
		})
	}
	require.Equal(t, shared.Principal{TenantID: 7, ActorID: 42}, got)
}

func TestRouterHealthAndAPIGuard(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewRouter(RouterParams{Logger: logger, Config: &Config{AppRateLimit: 1000}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/ledgers", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
