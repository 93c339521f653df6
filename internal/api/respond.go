package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/leadline/leadline/internal/conv"
	"github.com/leadline/leadline/internal/crm"
	"github.com/leadline/leadline/internal/delivery"
	"github.com/leadline/leadline/internal/popover"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps core errors onto HTTP statuses. Local validation is 400,
// backend refusals 422, rate limiting 429, unreachable backend 502. Anything
// unrecognized is a 500 rather than leaking internals.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := "internal"

	switch {
	case isValidation(err):
		status, kind = http.StatusBadRequest, "validation"
	case crm.IsNotFound(err) || errors.Is(err, delivery.ErrUnknownMessage):
		status, kind = http.StatusNotFound, "not_found"
	case crm.KindOf(err) == crm.KindRejected:
		status, kind = http.StatusUnprocessableEntity, "rejected"
	case crm.KindOf(err) == crm.KindRateLimited:
		status, kind = http.StatusTooManyRequests, "rate_limited"
	case crm.KindOf(err) == crm.KindTransport:
		status, kind = http.StatusBadGateway, "transport"
	}

	writeJSON(w, status, errorBody{Error: crm.Detail(err), Kind: kind})
}

func isValidation(err error) bool {
	return errors.Is(err, delivery.ErrEmptyBody) ||
		errors.Is(err, delivery.ErrBodyTooLong) ||
		errors.Is(err, delivery.ErrNotRetryable) ||
		errors.Is(err, conv.ErrInvalidPhone) ||
		errors.Is(err, conv.ErrEmptyTarget) ||
		errors.Is(err, conv.ErrLeadHasNoPhone) ||
		errors.Is(err, popover.ErrInvalidTarget)
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
