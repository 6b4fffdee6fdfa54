package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/gstbooks/internal/platform/httpx"
	"github.com/odyssey-erp/gstbooks/internal/shared"
)

// Handler serves balances and statements.
type Handler struct {
	logger  *slog.Logger
	service *Service
	now     func() time.Time
}

// NewHandler constructs the reports handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountLedgerRoutes attaches the balance view nested under /ledgers.
func (h *Handler) MountLedgerRoutes(r chi.Router) {
	r.Get("/{id}/balance", h.balance)
}

// MountRoutes attaches /reports routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.trialBalance)
	r.Get("/profit-and-loss", h.profitAndLoss)
	r.Get("/balance-sheet", h.balanceSheet)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	ledgerID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	asOf, err := httpx.DateQuery(r, "as_of", h.now())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	bal, err := h.service.BalanceAsOf(r.Context(), p.TenantID, ledgerID, asOf)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bal)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	asOf, err := httpx.DateQuery(r, "as_of", h.now())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), p.TenantID, asOf)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"as_of": asOf.Format(time.DateOnly), "balanced": tb.Balanced(), "report": tb})
}

func (h *Handler) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	to, err := httpx.DateQuery(r, "to", h.now())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var from *time.Time
	if r.URL.Query().Get("from") != "" {
		f, err := httpx.DateQuery(r, "from", time.Time{})
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		from = &f
	}
	pl, err := h.service.ProfitAndLoss(r.Context(), p.TenantID, from, to)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pl)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	asOf, err := httpx.DateQuery(r, "as_of", h.now())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	bs, err := h.service.BalanceSheet(r.Context(), p.TenantID, asOf)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"as_of": asOf.Format(time.DateOnly), "balanced": bs.Balanced(), "report": bs})
}
