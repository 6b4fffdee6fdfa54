package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/gstbooks/internal/accounting/accounts"
	"github.com/odyssey-erp/gstbooks/internal/accounting/bills"
	"github.com/odyssey-erp/gstbooks/internal/accounting/mappings"
	"github.com/odyssey-erp/gstbooks/internal/accounting/reports"
	"github.com/odyssey-erp/gstbooks/internal/accounting/vouchers"
	"github.com/odyssey-erp/gstbooks/internal/masterdata/taxes"
	"github.com/odyssey-erp/gstbooks/internal/observability"
	"github.com/odyssey-erp/gstbooks/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AccountsHandler *accounts.Handler
	VouchersHandler *vouchers.Handler
	BillsHandler    *bills.Handler
	ReportsHandler  *reports.Handler
	TaxesHandler    *taxes.Handler
	MappingsHandler *mappings.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
	// Idempotency guards POST routes under /api/v1 when set.
	Idempotency KeyStore
	// Ready reports dependency health for /healthz; nil means always ready.
	Ready func(r *http.Request) error
}

// NewRouter constructs the chi.Router with gstbooks defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Ready != nil {
			if err := params.Ready(r); err != nil {
				params.Logger.Warn("health check failed", slog.Any("error", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequirePrincipal(params.Logger))
		if params.Idempotency != nil {
			r.Use(Idempotency(params.Idempotency, params.Logger))
		}
		if params.AccountsHandler != nil {
			r.Route("/groups", params.AccountsHandler.MountGroupRoutes)
		}
		r.Route("/ledgers", func(r chi.Router) {
			if params.AccountsHandler != nil {
				params.AccountsHandler.MountLedgerRoutes(r)
			}
			if params.ReportsHandler != nil {
				params.ReportsHandler.MountLedgerRoutes(r)
			}
			if params.BillsHandler != nil {
				params.BillsHandler.MountLedgerRoutes(r)
			}
		})
		if params.VouchersHandler != nil {
			r.Route("/vouchers", params.VouchersHandler.MountRoutes)
		}
		if params.BillsHandler != nil {
			r.Route("/bills", params.BillsHandler.MountBillRoutes)
		}
		if params.TaxesHandler != nil {
			r.Route("/gst-rates", params.TaxesHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.MappingsHandler != nil {
			r.Route("/ledger-mappings", params.MappingsHandler.MountRoutes)
		}
	})

	return r
}
