package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
)

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) ProblemDetail {
	t.Helper()
	var p ProblemDetail
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&p))
	return p
}

func TestRespondErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.Validation("missing_code", "code required"), http.StatusUnprocessableEntity},
		{shared.NotFound("ledger", 4), http.StatusNotFound},
		{shared.InvalidState("not_draft", "voucher posted"), http.StatusConflict},
		{fmt.Errorf("allocate: %w", shared.ErrOverAllocation), http.StatusConflict},
		{shared.Cycle(1, 2), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: bad json", ErrBadRequest), http.StatusBadRequest},
		{shared.ErrUnbalanced, http.StatusInternalServerError},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, nil, tc.err)
		require.Equal(t, tc.status, rr.Code, tc.err.Error())
		p := decodeProblem(t, rr)
		require.Equal(t, tc.status, p.Status)
	}
}

func TestRespondErrorIncludesReason(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, nil, shared.NotFound("voucher", 9))
	p := decodeProblem(t, rr)
	require.Equal(t, "voucher_not_found", p.Reason)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		Code string `json:"code"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"A","extra":1}`))
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, ErrBadRequest)
}
