package handler

import (
	"net/http"
)

type TierHandler struct {
	gate GateFunc
}

func NewTierHandler(gate GateFunc) *TierHandler {
	return &TierHandler{
		gate: gate,
	}
}

func (h *TierHandler) Status(w http.ResponseWriter, r *http.Request) {
	res := h.gate(r).UserTier(r.Context())
	writeResult(w, res, http.StatusOK)
}
