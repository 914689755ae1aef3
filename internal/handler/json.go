package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DuyAnh662/Fileshare/internal/service"
)

// GateFunc builds the upload gate for the device behind a request.
type GateFunc func(r *http.Request) *service.Gate

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeResult writes a tagged result with a status code matching its reason.
func writeResult[T any](w http.ResponseWriter, res service.Result[T], okStatus int) {
	if res.OK {
		writeJSON(w, okStatus, res)
		return
	}
	if res.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter))
	}
	writeJSON(w, statusFor(res.Reason), res)
}

func statusFor(reason service.Reason) int {
	switch reason {
	case service.ReasonValidation, service.ReasonInvalidCallback, service.ReasonNoToken:
		return http.StatusBadRequest
	case service.ReasonQuotaExceeded, service.ReasonExtraCapReached:
		return http.StatusForbidden
	case service.ReasonMismatch, service.ReasonTooFast, service.ReasonReplay:
		return http.StatusConflict
	case service.ReasonCooldown, service.ReasonRateLimited:
		return http.StatusTooManyRequests
	case service.ReasonUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
