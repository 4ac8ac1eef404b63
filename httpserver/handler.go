package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/ruteri/validator-provisioning-service/interfaces"
	"github.com/ruteri/validator-provisioning-service/lifecycle"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// submitAcceptedMessage is returned with every 202 response.
const submitAcceptedMessage = "Validator creation in progress"

// CreateValidatorsRequest is the POST /validators request body.
type CreateValidatorsRequest struct {
	NumValidators int    `json:"num_validators"`
	FeeRecipient  string `json:"fee_recipient"`
}

// CreateValidatorsResponse is the POST /validators response body.
type CreateValidatorsResponse struct {
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
}

// RequestStatusResponse is the GET /validators/{request_id} response body.
// Keys appear only for successful requests, Message only for failed ones.
type RequestStatusResponse struct {
	Status  string   `json:"status"`
	Keys    []string `json:"keys,omitempty"`
	Message string   `json:"message,omitempty"`
}

// HealthResponse is the GET /health response body.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// errorResponse is the body of all error replies.
type errorResponse struct {
	Error string `json:"error"`
}

// Handler translates HTTP requests into lifecycle engine operations. Field
// validation happens here before the engine call; the engine validates again
// on its own behalf.
type Handler struct {
	engine *lifecycle.Engine
	store  interfaces.RequestStore
	log    *slog.Logger
}

// NewHandler creates an HTTP handler around the lifecycle engine. The store
// is used only for the health check's reachability probe.
func NewHandler(engine *lifecycle.Engine, store interfaces.RequestStore, log *slog.Logger) *Handler {
	return &Handler{
		engine: engine,
		store:  store,
		log:    log,
	}
}

// HandleCreateValidators accepts a validator creation request and returns
// 202 with the request identifier before any key is generated.
//
// URL format: POST /validators
// Request body: {"num_validators": N, "fee_recipient": "0x" + 40 hex chars}
func (h *Handler) HandleCreateValidators(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req CreateValidatorsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.NumValidators <= 0 {
		writeError(w, http.StatusBadRequest, "num_validators must be a positive integer")
		return
	}
	if !common.IsHexAddress(req.FeeRecipient) {
		writeError(w, http.StatusBadRequest, "fee_recipient must be 0x followed by 40 hex characters")
		return
	}

	id, err := h.engine.Submit(r.Context(), req.NumValidators, req.FeeRecipient)
	if err != nil {
		switch {
		case errors.Is(err, interfaces.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, lifecycle.ErrDraining):
			writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		default:
			h.log.Error("Failed to submit validator request", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to submit request")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, CreateValidatorsResponse{
		RequestID: id.String(),
		Message:   submitAcceptedMessage,
	})
}

// HandleRequestStatus returns the current state of a request: just the
// status while processing, the ordered key list once successful, or the
// recorded error message once failed.
//
// URL format: GET /validators/{request_id}
func (h *Handler) HandleRequestStatus(w http.ResponseWriter, r *http.Request) {
	id := interfaces.RequestID(chi.URLParam(r, "request_id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing request id")
		return
	}

	view, err := h.engine.Query(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrRequestNotFound) {
			writeError(w, http.StatusNotFound, "request not found")
			return
		}
		h.log.Error("Failed to query request", "err", err, slog.String("requestID", id.String()))
		writeError(w, http.StatusInternalServerError, "failed to query request")
		return
	}

	resp := RequestStatusResponse{Status: string(view.Status)}
	switch view.Status {
	case interfaces.StatusSuccessful:
		resp.Keys = view.Keys
	case interfaces.StatusFailed:
		resp.Message = view.ErrorMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleHealth reports whether the persistence provider is reachable.
//
// URL format: GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.log.Error("Health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "error", Database: "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Database: "connected"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
