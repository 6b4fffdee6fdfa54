// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
)

// Sentinel errors for the transport layer.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
)

type errorMapping struct {
	kind   error
	status int
	title  string
}

var mappings = []errorMapping{
	{shared.ErrValidation, http.StatusUnprocessableEntity, "Validation Failed"},
	{shared.ErrCycle, http.StatusUnprocessableEntity, "Hierarchy Cycle"},
	{shared.ErrRateNotFound, http.StatusUnprocessableEntity, "GST Rate Not Found"},
	{shared.ErrMappingNotFound, http.StatusUnprocessableEntity, "Ledger Mapping Missing"},
	{shared.ErrNotFound, http.StatusNotFound, "Not Found"},
	{shared.ErrInvalidState, http.StatusConflict, "Invalid State"},
	{shared.ErrOverAllocation, http.StatusConflict, "Over Allocation"},
	{ErrBadRequest, http.StatusBadRequest, "Bad Request"},
	{ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
}

// RespondError maps domain errors to HTTP responses using RFC7807. Unmapped
// errors, including unbalanced entries and rate overlaps, are logged and
// surface as 500 without detail.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	for _, m := range mappings {
		if errors.Is(err, m.kind) {
			writeProblem(w, m.status, m.title, err.Error(), shared.Reason(err))
			return
		}
	}
	if logger != nil {
		logger.Error("request failed", slog.Any("error", err), slog.String("reason", shared.Reason(err)))
	}
	writeProblem(w, http.StatusInternalServerError, "Internal Error", "", shared.Reason(err))
}
