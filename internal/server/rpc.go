package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sidekick-dev/sidekick/internal/logging"
	"github.com/sidekick-dev/sidekick/internal/provider"
	"github.com/sidekick-dev/sidekick/internal/secrets"
	"github.com/sidekick-dev/sidekick/internal/session"
	"github.com/sidekick-dev/sidekick/internal/storage"
)

// errBadParams marks request payloads rejected before reaching a backend
// component.
var errBadParams = errors.New("invalid request")

// requestData is the generic RPC envelope: one request, exactly one
// response correlated by RequestID, errors in the error field and never a
// silent drop.
type requestData struct {
	RequestType string          `json:"requestType"`
	RequestID   string          `json:"requestId"`
	ClientID    string          `json:"clientId,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

type responseData struct {
	RequestID string    `json:"requestId"`
	Payload   any       `json:"payload,omitempty"`
	Error     *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RPC error codes.
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConfigError    = "CONFIG_ERROR"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

type rpcHandler func(ctx context.Context, req *requestData) (any, error)

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req requestData
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, responseData{
			Error: &rpcError{Code: ErrCodeInvalidRequest, Message: "malformed request envelope"},
		})
		return
	}

	handler, ok := s.handlers[req.RequestType]
	if !ok {
		writeJSON(w, http.StatusOK, responseData{
			RequestID: req.RequestID,
			Error:     &rpcError{Code: ErrCodeNotFound, Message: "unknown request type: " + req.RequestType},
		})
		return
	}

	payload, err := handler(r.Context(), &req)
	if err != nil {
		logging.Debug().Str("requestType", req.RequestType).Err(err).Msg("rpc request failed")
		writeJSON(w, http.StatusOK, responseData{
			RequestID: req.RequestID,
			Error:     &rpcError{Code: classify(err), Message: err.Error()},
		})
		return
	}

	writeJSON(w, http.StatusOK, responseData{RequestID: req.RequestID, Payload: payload})
}

// classify maps an error to an envelope code. Sentinel errors from the
// backend packages decide first; the message-text switch is a fallback for
// errors without one (external tool servers, client tools).
func classify(err error) string {
	switch {
	case errors.Is(err, errBadParams), errors.Is(err, session.ErrInvalidInput):
		return ErrCodeInvalidRequest
	case errors.Is(err, provider.ErrProviderNotConfigured),
		errors.Is(err, provider.ErrModelNotFound),
		errors.Is(err, provider.ErrNoModels):
		return ErrCodeConfigError
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrMessageNotFound),
		errors.Is(err, session.ErrToolCallNotFound),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, secrets.ErrNotFound):
		return ErrCodeNotFound
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"), strings.Contains(msg, "unknown"):
		return ErrCodeNotFound
	case strings.Contains(msg, "not configured"), strings.Contains(msg, "api key"):
		return ErrCodeConfigError
	case strings.Contains(msg, "must"), strings.Contains(msg, "invalid"),
		strings.Contains(msg, "required"):
		return ErrCodeInvalidRequest
	default:
		return ErrCodeInternalError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Warn().Err(err).Msg("encode response")
	}
}

// decode unmarshals an RPC payload into a typed parameter struct.
func decode[T any](payload json.RawMessage) (*T, error) {
	var v T
	if len(payload) == 0 {
		return &v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("%w: invalid payload: %v", errBadParams, err)
	}
	return &v, nil
}
