package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/valinor-ai/llmguard/internal/platform/database"
)

// Handler serves audit query endpoints.
type Handler struct {
	db    database.Querier
	store *Store
}

// NewHandler creates an audit query handler.
func NewHandler(db database.Querier) *Handler {
	return &Handler{db: db, store: NewStore()}
}

// HandleListEvents returns recent scan events.
// GET /api/v1/audit/scans?limit=50&session_id=<id>&direction=prompt&valid=false&after=<RFC3339>
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := ListEventsParams{Limit: 50}

	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			p.Limit = n
		}
	}
	if raw := q.Get("session_id"); raw != "" {
		p.SessionID = &raw
	}
	if raw := q.Get("direction"); raw != "" {
		dir := Direction(raw)
		if dir != DirectionPrompt && dir != DirectionOutput {
			writeAuditJSON(w, http.StatusBadRequest, map[string]string{"error": "direction must be prompt or output"})
			return
		}
		p.Direction = &dir
	}
	if raw := q.Get("valid"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeAuditJSON(w, http.StatusBadRequest, map[string]string{"error": "valid must be a boolean"})
			return
		}
		p.Valid = &v
	}
	if raw := q.Get("source"); raw != "" {
		p.Source = &raw
	}
	for _, f := range []struct {
		key string
		dst **time.Time
	}{{"after", &p.After}, {"before", &p.Before}} {
		raw := q.Get(f.key)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeAuditJSON(w, http.StatusBadRequest, map[string]string{"error": f.key + " must be RFC3339"})
			return
		}
		*f.dst = &ts
	}

	if h.db == nil {
		writeAuditJSON(w, http.StatusOK, map[string]any{"events": []any{}, "count": 0})
		return
	}

	events, err := h.store.List(r.Context(), h.db, p)
	if err != nil {
		writeAuditJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}

	out := make([]map[string]any, 0, len(events))
	for _, e := range events {
		out = append(out, map[string]any{
			"id":          e.ID,
			"session_id":  e.SessionID,
			"direction":   e.Direction,
			"is_valid":    e.Valid,
			"results":     e.Results,
			"duration_ms": e.DurationMS,
			"source":      e.Source,
			"created_at":  e.CreatedAt,
		})
	}
	writeAuditJSON(w, http.StatusOK, map[string]any{"events": out, "count": len(out)})
}

func writeAuditJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
