package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/valinor-ai/llmguard/internal/audit"
	"github.com/valinor-ai/llmguard/internal/platform/middleware"
	"github.com/valinor-ai/llmguard/internal/scan"
	"github.com/valinor-ai/llmguard/internal/vault"
)

const maxBodyBytes = 1 << 20

// HandlerConfig tunes request handling.
type HandlerConfig struct {
	// Timeout bounds a single scan call. Zero disables it.
	Timeout time.Duration
	// FailFast is the default when a request does not set fail_fast.
	FailFast bool
}

// Handler serves the analyze endpoints.
type Handler struct {
	pipeline *Pipeline
	sessions *vault.Store
	audit    audit.Logger
	cfg      HandlerConfig
}

// NewHandler creates an analyze Handler. A nil audit logger disables auditing.
func NewHandler(pipeline *Pipeline, sessions *vault.Store, auditLog audit.Logger, cfg HandlerConfig) *Handler {
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}
	return &Handler{pipeline: pipeline, sessions: sessions, audit: auditLog, cfg: cfg}
}

// RegisterRoutes mounts the analyze and session routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /analyze/prompt", h.HandlePrompt)
	mux.HandleFunc("POST /analyze/output", h.HandleOutput)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.HandleDeleteSession)
}

type promptRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id,omitempty"`
	FailFast  *bool  `json:"fail_fast,omitempty"`
}

type outputRequest struct {
	Prompt    string `json:"prompt"`
	Output    string `json:"output"`
	SessionID string `json:"session_id,omitempty"`
	FailFast  *bool  `json:"fail_fast,omitempty"`
}

type promptResponse struct {
	SessionID       string             `json:"session_id"`
	SanitizedPrompt string             `json:"sanitized_prompt"`
	IsValid         bool               `json:"is_valid"`
	Scanners        map[string]float64 `json:"scanners"`
	Results         []scan.Entry       `json:"results"`
}

type outputResponse struct {
	SessionID       string             `json:"session_id"`
	SanitizedOutput string             `json:"sanitized_output"`
	IsValid         bool               `json:"is_valid"`
	Scanners        map[string]float64 `json:"scanners"`
	Results         []scan.Entry       `json:"results"`
}

// HandlePrompt runs the input chain. A new session is opened when the
// request names none.
// POST /analyze/prompt
func (h *Handler) HandlePrompt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	sessionID := h.sessionID(r, req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	v, created := h.sessions.GetOrCreate(sessionID)
	logger := slog.Default().With("session_id", sessionID, "request_id", middleware.GetRequestID(r.Context()))
	if created {
		logger.Debug("session opened")
	}

	start := time.Now()
	report, err := h.run(r.Context(), func(ctx context.Context) (scan.Report, error) {
		return h.pipeline.ScanPrompt(ctx, v, req.Prompt, h.failFast(req.FailFast))
	})
	if err != nil {
		h.writeScanError(w, logger, err)
		return
	}
	elapsed := time.Since(start)

	h.audit.Log(r.Context(), audit.NewEvent(sessionID, audit.DirectionPrompt, report, elapsed, audit.SourceAPI))
	logger.Info("prompt scanned", "valid", report.Valid(), "scanners", report.Len(), "duration_ms", elapsed.Milliseconds())

	writeJSON(w, http.StatusOK, promptResponse{
		SessionID:       sessionID,
		SanitizedPrompt: report.Text,
		IsValid:         report.Valid(),
		Scanners:        report.Scores(),
		Results:         report.Entries(),
	})
}

// HandleOutput runs the output chain against the session's vault. Without a
// session the chain runs over an empty vault.
// POST /analyze/output
func (h *Handler) HandleOutput(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req outputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	sessionID := h.sessionID(r, req.SessionID)
	v := vault.New()
	if sessionID != "" {
		var err error
		v, err = h.sessions.Get(sessionID)
		if errors.Is(err, vault.ErrSessionNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "session lookup failed"})
			return
		}
	}
	logger := slog.Default().With("session_id", sessionID, "request_id", middleware.GetRequestID(r.Context()))

	start := time.Now()
	report, err := h.run(r.Context(), func(ctx context.Context) (scan.Report, error) {
		return h.pipeline.ScanOutput(ctx, v, req.Prompt, req.Output, h.failFast(req.FailFast))
	})
	if err != nil {
		h.writeScanError(w, logger, err)
		return
	}
	elapsed := time.Since(start)

	h.audit.Log(r.Context(), audit.NewEvent(sessionID, audit.DirectionOutput, report, elapsed, audit.SourceAPI))
	logger.Info("output scanned", "valid", report.Valid(), "scanners", report.Len(), "duration_ms", elapsed.Milliseconds())

	writeJSON(w, http.StatusOK, outputResponse{
		SessionID:       sessionID,
		SanitizedOutput: report.Text,
		IsValid:         report.Valid(),
		Scanners:        report.Scores(),
		Results:         report.Entries(),
	})
}

// HandleDeleteSession ends a session and drops its vault.
// DELETE /api/v1/sessions/{id}
func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.sessions.Delete(id); err != nil {
		if errors.Is(err, vault.ErrSessionNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "deleting session failed"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionID prefers the body over the X-Session-ID header.
func (h *Handler) sessionID(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return middleware.GetSessionID(r.Context())
}

func (h *Handler) failFast(override *bool) bool {
	if override != nil {
		return *override
	}
	return h.cfg.FailFast
}

type scanOutcome struct {
	report scan.Report
	err    error
}

// run executes fn under the configured timeout. On expiry the scan is
// abandoned and context.DeadlineExceeded is returned.
func (h *Handler) run(ctx context.Context, fn func(context.Context) (scan.Report, error)) (scan.Report, error) {
	if h.cfg.Timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	done := make(chan scanOutcome, 1)
	go func() {
		report, err := fn(ctx)
		done <- scanOutcome{report: report, err: err}
	}()

	select {
	case out := <-done:
		return out.report, out.err
	case <-ctx.Done():
		return scan.Report{}, ctx.Err()
	}
}

func (h *Handler) writeScanError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("scan timed out", "timeout", h.cfg.Timeout)
		writeJSON(w, http.StatusRequestTimeout, map[string]string{"error": "scan timed out"})
	case errors.Is(err, context.Canceled):
		logger.Info("scan canceled by client")
		writeJSON(w, http.StatusRequestTimeout, map[string]string{"error": "scan canceled"})
	case errors.Is(err, scan.ErrInvalidConfig):
		logger.Error("scanner configuration error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scanner configuration error"})
	default:
		logger.Error("scan failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scan failed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
