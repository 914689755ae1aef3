package handler

import (
	"net/http"
)

type QuotaHandler struct {
	gate GateFunc
}

func NewQuotaHandler(gate GateFunc) *QuotaHandler {
	return &QuotaHandler{
		gate: gate,
	}
}

func (h *QuotaHandler) Check(w http.ResponseWriter, r *http.Request) {
	res := h.gate(r).CheckUploadLimit(r.Context())
	writeResult(w, res, http.StatusOK)
}

func (h *QuotaHandler) Increment(w http.ResponseWriter, r *http.Request) {
	res := h.gate(r).IncrementUsage(r.Context())
	writeResult(w, res, http.StatusOK)
}
