package handler

import (
	"log/slog"
	"net/http"

	"github.com/DuyAnh662/Fileshare/internal/ctxkeys"
	"github.com/DuyAnh662/Fileshare/internal/model"
	"github.com/DuyAnh662/Fileshare/internal/service"
)

type TaskHandler struct {
	gate GateFunc
}

func NewTaskHandler(gate GateFunc) *TaskHandler {
	return &TaskHandler{
		gate: gate,
	}
}

type callbackRequest struct {
	Token string `json:"token"`
}

// Start issues a session token for the goal in the path and returns the
// external task URL the UI should open.
func (h *TaskHandler) Start(w http.ResponseWriter, r *http.Request) {
	goal := r.PathValue("goal")

	res := h.gate(r).IssueSessionToken(r.Context(), goal)
	if res.OK {
		slog.Info("task started", "goal", goal, "device_id", ctxkeys.DeviceID(r.Context()))
	}
	writeResult(w, res, http.StatusCreated)
}

// Callback records a tier-progress completion. The provider may echo the
// token in the query string; otherwise the device's stored token is used.
func (h *TaskHandler) Callback(w http.ResponseWriter, r *http.Request) {
	token, ok := h.callbackToken(w, r)
	if !ok {
		return
	}
	res := h.gate(r).RecordCompletion(r.Context(), token)
	h.logOutcome(r, res)
	writeResult(w, res, http.StatusOK)
}

func (h *TaskHandler) ExtraCallback(w http.ResponseWriter, r *http.Request) {
	token, ok := h.callbackToken(w, r)
	if !ok {
		return
	}
	res := h.gate(r).RecordExtraCompletion(r.Context(), token)
	h.logOutcome(r, res)
	writeResult(w, res, http.StatusOK)
}

func (h *TaskHandler) callbackToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	if r.Method != http.MethodPost {
		return "", true
	}

	var req callbackRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		writeResult(w, service.Failure[any](service.ReasonValidation, "Invalid request body"), http.StatusOK)
		return "", false
	}
	return req.Token, true
}

func (h *TaskHandler) logOutcome(r *http.Request, res service.Result[model.CompletionOutcome]) {
	deviceID := ctxkeys.DeviceID(r.Context())
	if !res.OK {
		slog.Warn("task completion rejected", "reason", res.Reason, "device_id", deviceID)
		return
	}
	slog.Info("task completed",
		"type", res.Data.Type,
		"tier", res.Data.Tier,
		"completion_count", res.Data.CompletionCount,
		"device_id", deviceID,
	)
}
