// Package respond holds the JSON request/response helpers shared by the
// API features, including the mapping from fault kinds to HTTP status
// codes.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sanghsetu/sanghsetu/internal/app/system/faults"
)

// maxBodyBytes caps request bodies; the API carries metadata, not
// documents.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Decode parses the request body into v.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return faults.Wrap(faults.Validation, err, "invalid request body")
	}
	return nil
}

// Fail maps a fault kind to its HTTP status and writes the error body.
// Unknown errors become 500 and are logged without leaking the cause.
func Fail(w http.ResponseWriter, log *zap.Logger, err error) {
	var fe *faults.Error
	if errors.As(err, &fe) {
		JSON(w, statusFor(fe.Kind), errorBody{Error: fe.Msg, Kind: string(fe.Kind)})
		return
	}
	log.Error("request failed", zap.Error(err))
	JSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
}

func statusFor(k faults.Kind) int {
	switch k {
	case faults.Validation:
		return http.StatusBadRequest
	case faults.Conflict, faults.Invariant:
		return http.StatusConflict
	case faults.Authority:
		return http.StatusForbidden
	case faults.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
