package handler

import (
	"log/slog"
	"net/http"

	"github.com/DuyAnh662/Fileshare/internal/ctxkeys"
	"github.com/DuyAnh662/Fileshare/internal/service"
)

type SubmissionHandler struct {
	gate GateFunc
}

func NewSubmissionHandler(gate GateFunc) *SubmissionHandler {
	return &SubmissionHandler{
		gate: gate,
	}
}

func (h *SubmissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.SubmissionInput
	err := decodeJSON(w, r, &input)
	if err != nil {
		writeResult(w, service.Failure[any](service.ReasonValidation, "Invalid request body"), http.StatusOK)
		return
	}

	res := h.gate(r).Submit(r.Context(), input)
	if res.OK {
		slog.Info("submission received",
			"submission_id", res.Data.ID,
			"file_type", res.Data.FileType,
			"device_id", ctxkeys.DeviceID(r.Context()),
		)
	}
	writeResult(w, res, http.StatusCreated)
}
