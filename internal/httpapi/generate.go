// Package httpapi exposes the creative generation endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/launchpro/creative-engine/internal/creative"
)

// Pipeline is the generation entrypoint the handler drives.
type Pipeline interface {
	Generate(ctx context.Context, input creative.PipelineInput) creative.PipelineResult
}

// Handler serves /v1/creatives/generate.
type Handler struct {
	pipeline Pipeline
	timeout  time.Duration
	logger   *zap.Logger
}

func NewHandler(pipeline Pipeline, timeout time.Duration, logger *zap.Logger) *Handler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pipeline: pipeline, timeout: timeout, logger: logger}
}

// RegisterRoutes mounts the API on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/creatives/generate", h.handleGenerate)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var input creative.PipelineInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result := h.pipeline.Generate(ctx, input)
	code := http.StatusOK
	if !result.Success {
		// Input problems map to 400; blocked pipeline stages to 502.
		code = http.StatusBadGateway
		for _, e := range result.Errors {
			if e.Code == creative.ErrInvalidInput {
				code = http.StatusBadRequest
				break
			}
		}
	}
	h.writeJSON(w, code, result)
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("write response", zap.Error(err))
	}
}
