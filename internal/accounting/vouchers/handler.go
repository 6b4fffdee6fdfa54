package vouchers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/gstbooks/internal/accounting/bills"
	"github.com/odyssey-erp/gstbooks/internal/platform/httpx"
	"github.com/odyssey-erp/gstbooks/internal/shared"
)

// Handler exposes the voucher lifecycle over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the vouchers handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches /vouchers routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.deleteDraft)
	r.Post("/{id}/post", h.post)
	r.Post("/{id}/cancel", h.cancel)
}

type itemRequest struct {
	ItemName     string          `json:"item_name"`
	HSNSAC       string          `json:"hsn_sac"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	Rate         decimal.Decimal `json:"rate"`
	Discount     decimal.Decimal `json:"discount"`
	LedgerID     *int64          `json:"ledger_id"`
	RateOverride bool            `json:"rate_override"`
	CGSTRate     decimal.Decimal `json:"cgst_rate"`
	SGSTRate     decimal.Decimal `json:"sgst_rate"`
	IGSTRate     decimal.Decimal `json:"igst_rate"`
	CessRate     decimal.Decimal `json:"cess_rate"`
}

type entryRequest struct {
	LedgerID int64           `json:"ledger_id"`
	Debit    decimal.Decimal `json:"debit_amount"`
	Credit   decimal.Decimal `json:"credit_amount"`
}

type createRequest struct {
	VoucherTypeID int64          `json:"voucher_type_id"`
	Date          string         `json:"voucher_date"`
	Number        string         `json:"voucher_number"`
	Reference     string         `json:"reference_number"`
	Narration     string         `json:"narration"`
	PartyLedgerID int64          `json:"party_ledger_id"`
	ItemLedgerID  *int64         `json:"item_ledger_id"`
	PlaceOfSupply string         `json:"place_of_supply"`
	DueDate       string         `json:"due_date"`
	Items         []itemRequest  `json:"items"`
	Entries       []entryRequest `json:"entries"`
	BillRefs      []bills.Ref    `json:"bill_refs"`
}

// body picks the payload by shape; the service rejects a shape that does not
// fit the voucher type's kind.
func (req createRequest) body() (Body, error) {
	if len(req.Items) > 0 || req.PartyLedgerID > 0 {
		inv := Invoice{
			PartyLedgerID: req.PartyLedgerID,
			ItemLedgerID:  req.ItemLedgerID,
			PlaceOfSupply: req.PlaceOfSupply,
			Items:         make([]Item, len(req.Items)),
		}
		if req.DueDate != "" {
			due, err := time.Parse(time.DateOnly, req.DueDate)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid due_date", httpx.ErrBadRequest)
			}
			inv.DueDate = &due
		}
		for i, it := range req.Items {
			inv.Items[i] = Item{
				ItemName:     it.ItemName,
				HSNSAC:       it.HSNSAC,
				Quantity:     it.Quantity,
				Unit:         it.Unit,
				Rate:         it.Rate,
				Discount:     it.Discount,
				LedgerID:     it.LedgerID,
				RateOverride: it.RateOverride,
				CGSTRate:     it.CGSTRate,
				SGSTRate:     it.SGSTRate,
				IGSTRate:     it.IGSTRate,
				CessRate:     it.CessRate,
			}
		}
		return inv, nil
	}
	if len(req.Entries) > 0 {
		s := Settlement{Entries: make([]Entry, len(req.Entries)), BillRefs: req.BillRefs}
		for i, e := range req.Entries {
			s.Entries[i] = Entry{LedgerID: e.LedgerID, Debit: e.Debit, Credit: e.Credit}
		}
		return s, nil
	}
	return nil, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		httpx.RespondError(w, h.logger, fmt.Errorf("%w: invalid voucher_date", httpx.ErrBadRequest))
		return
	}
	body, err := req.body()
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	v, err := h.service.CreateDraft(r.Context(), CreateDraftInput{
		TenantID:      p.TenantID,
		ActorID:       p.ActorID,
		VoucherTypeID: req.VoucherTypeID,
		Date:          date,
		Number:        req.Number,
		Reference:     req.Reference,
		Narration:     req.Narration,
		Body:          body,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, v)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	filter := ListFilter{Kind: Kind(q.Get("kind")), Status: Status(q.Get("status"))}
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		if q.Get(name) == "" {
			continue
		}
		d, err := httpx.DateQuery(r, name, time.Time{})
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		*dst = &d
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			httpx.RespondError(w, h.logger, fmt.Errorf("%w: invalid limit", httpx.ErrBadRequest))
			return
		}
		filter.Limit = limit
	}
	out, err := h.service.List(r.Context(), p.TenantID, filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"vouchers": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	v, err := h.service.Get(r.Context(), p.TenantID, id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) deleteDraft(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.DeleteDraft(r.Context(), p.TenantID, p.ActorID, id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.Post(r.Context(), PostInput{TenantID: p.TenantID, VoucherID: id, ActorID: p.ActorID})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

type cancelRequest struct {
	Reason string `json:"reason"`
	Date   string `json:"reversal_date"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	in := CancelInput{TenantID: p.TenantID, VoucherID: id, ActorID: p.ActorID, Reason: req.Reason}
	if req.Date != "" {
		d, err := time.Parse(time.DateOnly, req.Date)
		if err != nil {
			httpx.RespondError(w, h.logger, fmt.Errorf("%w: invalid reversal_date", httpx.ErrBadRequest))
			return
		}
		in.Date = &d
	}
	res, err := h.service.Cancel(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}
