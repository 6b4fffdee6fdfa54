package taxes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/gstbooks/internal/platform/httpx"
)

// Handler exposes rate lookups over JSON.
type Handler struct {
	logger   *slog.Logger
	resolver *Resolver
	now      func() time.Time
}

// NewHandler constructs the tax handler.
func NewHandler(logger *slog.Logger, resolver *Resolver) *Handler {
	return &Handler{logger: logger, resolver: resolver, now: time.Now}
}

// MountRoutes attaches rate routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{hsn}", h.resolve)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	asOf, err := httpx.DateQuery(r, "as_of", h.now())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	rate, err := h.resolver.ResolveRate(r.Context(), chi.URLParam(r, "hsn"), asOf)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rate)
}
