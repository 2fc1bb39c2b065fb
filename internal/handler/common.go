package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"retail-ledger/internal/errors"
)

type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Error *Error      `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := Response{Data: data}
	json.NewEncoder(w).Encode(response)
}

func writeError(w http.ResponseWriter, err error) {
	appErr, ok := err.(*errors.AppError)
	if !ok {
		appErr = errors.NewAppError(errors.InternalError, "an unexpected error occurred").WithDetails(err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus())
	json.NewEncoder(w).Encode(Response{Error: &Error{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
	}})
}

// principal is the authenticated caller as asserted by the upstream auth
// layer; this service trusts the headers it forwards.
type principal struct {
	ID         int64
	Privileged bool
}

func requesterFrom(r *http.Request) (principal, error) {
	idStr := r.Header.Get("X-Requester-Id")
	if idStr == "" {
		return principal{}, errors.NewAppError(errors.InvalidInput, "missing X-Requester-Id header")
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return principal{}, errors.NewAppError(errors.InvalidInput, "X-Requester-Id must be a positive integer")
	}
	return principal{
		ID:         id,
		Privileged: strings.EqualFold(r.Header.Get("X-Requester-Role"), "admin"),
	}, nil
}
