package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vanshika/fraudstream/internal/domain"
)

// StreamController is the control surface of the stream loop.
type StreamController interface {
	Start(ctx context.Context, overrides domain.StreamOverrides) (domain.Status, error)
	Stop()
	Status() domain.Status
}

// StreamHandlers exposes the stream controller over HTTP.
type StreamHandlers struct {
	logger *slog.Logger
	stream StreamController
}

// NewStreamHandlers constructs a StreamHandlers instance.
func NewStreamHandlers(logger *slog.Logger, stream StreamController) *StreamHandlers {
	return &StreamHandlers{
		logger: logger,
		stream: stream,
	}
}

func (h *StreamHandlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	respondJSON(w, http.StatusOK, h.stream.Status())
}

func (h *StreamHandlers) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req startRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	status, err := h.stream.Start(r.Context(), req.toOverrides())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrBrokerUnavailable):
			h.logger.Error("stream start failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			h.logger.Error("stream start failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to start stream")
		}
		return
	}

	respondJSON(w, http.StatusOK, status)
}

func (h *StreamHandlers) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	h.stream.Stop()
	respondJSON(w, http.StatusOK, h.stream.Status())
}

// startRequest mirrors domain.StreamOverrides; absent fields keep the current value.
type startRequest struct {
	IntervalSecs *int     `json:"interval_secs"`
	FraudRate    *float64 `json:"fraud_rate"`
	BatchMin     *int     `json:"batch_min"`
	BatchMax     *int     `json:"batch_max"`
}

func (req startRequest) toOverrides() domain.StreamOverrides {
	return domain.StreamOverrides{
		IntervalSecs: req.IntervalSecs,
		FraudRate:    req.FraudRate,
		BatchMin:     req.BatchMin,
		BatchMax:     req.BatchMax,
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return io.EOF
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
