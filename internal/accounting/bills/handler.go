package bills

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/gstbooks/internal/platform/httpx"
	"github.com/odyssey-erp/gstbooks/internal/shared"
)

// Handler exposes bill allocation and outstanding queries.
type Handler struct {
	logger  *slog.Logger
	tracker *Tracker
	now     func() time.Time
}

// NewHandler constructs the bills handler.
func NewHandler(logger *slog.Logger, tracker *Tracker) *Handler {
	return &Handler{logger: logger, tracker: tracker, now: time.Now}
}

// MountBillRoutes attaches /bills routes.
func (h *Handler) MountBillRoutes(r chi.Router) {
	r.Post("/{id}/allocations", h.allocate)
	r.Get("/aging", h.tenantAging)
}

// MountLedgerRoutes attaches bill views nested under /ledgers.
func (h *Handler) MountLedgerRoutes(r chi.Router) {
	r.Get("/{id}/bills", h.outstanding)
	r.Get("/{id}/aging", h.ledgerAging)
}

type allocateRequest struct {
	VoucherID int64           `json:"voucher_id"`
	Amount    decimal.Decimal `json:"amount"`
	Date      string          `json:"allocation_date"`
}

func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	billID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req allocateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	in := AllocateInput{TenantID: p.TenantID, BillID: billID, VoucherID: req.VoucherID, Amount: req.Amount}
	if req.Date != "" {
		in.Date, err = time.Parse(time.DateOnly, req.Date)
		if err != nil {
			httpx.RespondError(w, h.logger, fmt.Errorf("%w: invalid allocation_date", httpx.ErrBadRequest))
			return
		}
	}
	alloc, err := h.tracker.Allocate(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, alloc)
}

func (h *Handler) outstanding(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	ledgerID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	out, err := h.tracker.OutstandingBills(r.Context(), p.TenantID, ledgerID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bills": out})
}

func (h *Handler) ledgerAging(w http.ResponseWriter, r *http.Request) {
	ledgerID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.aging(w, r, &ledgerID)
}

func (h *Handler) tenantAging(w http.ResponseWriter, r *http.Request) {
	h.aging(w, r, nil)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request, ledgerID *int64) {
	p, _ := shared.PrincipalFromContext(r.Context())
	asOf, err := httpx.DateQuery(r, "as_of", h.now())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	buckets, err := h.tracker.Aging(r.Context(), p.TenantID, ledgerID, asOf)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"as_of": asOf.Format(time.DateOnly), "aging": buckets})
}
