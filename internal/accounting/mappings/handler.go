package mappings

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/gstbooks/internal/platform/httpx"
	"github.com/odyssey-erp/gstbooks/internal/shared"
)

// Store lists and updates tenant mappings.
type Store interface {
	List(ctx context.Context, tenantID int64) ([]LedgerMapping, error)
	Set(ctx context.Context, tenantID int64, key string, ledgerID int64) (LedgerMapping, error)
}

// Handler exposes the tax ledger mappings.
type Handler struct {
	logger *slog.Logger
	store  Store
}

// NewHandler constructs the mappings handler.
func NewHandler(logger *slog.Logger, store Store) *Handler {
	return &Handler{logger: logger, store: store}
}

// MountRoutes attaches /ledger-mappings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Put("/{key}", h.set)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	out, err := h.store.List(r.Context(), p.TenantID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if out == nil {
		out = []LedgerMapping{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"mappings": out})
}

type setRequest struct {
	LedgerID int64 `json:"ledger_id"`
}

func (h *Handler) set(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	var req setRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	m, err := h.store.Set(r.Context(), p.TenantID, chi.URLParam(r, "key"), req.LedgerID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.logger.Info("ledger mapping updated",
		slog.Int64("tenant_id", p.TenantID),
		slog.String("key", m.Key),
		slog.Int64("ledger_id", m.LedgerID))
	httpx.JSON(w, http.StatusOK, m)
}
