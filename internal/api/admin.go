package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sqlbridge/sqlbridge/internal/config"
)

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	database := r.PathValue("database")
	if strings.TrimSpace(database) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION", "database is required", nil)
		return
	}

	// A session that registered a custom connection introspects through it.
	descriptor, err := deps.Service.Schema(r.Context(), database, r.URL.Query().Get("session_id"))
	if err != nil {
		writeQueryError(r.Context(), w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"database":    descriptor.Database,
		"dialect":     string(descriptor.Dialect),
		"table_count": len(descriptor.Tables),
		"tables":      descriptor.Tables,
	})
}

func handleDatabases(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	databases, err := deps.Service.Databases(r.Context())
	if err != nil {
		writeQueryError(r.Context(), w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"databases": databases,
	})
}

func handleSchemaCacheClear(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req struct {
		Database string `json:"database"`
	}
	// An empty or absent body clears every cached descriptor.
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	deps.Service.ClearSchemaCache(req.Database)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"database": req.Database,
	})
}

func handleHistoryClear(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION", "session_id is required", nil)
		return
	}

	removed := deps.Service.ClearHistory(req.SessionID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"session_id": req.SessionID,
		"removed":    removed,
	})
}

// handleHealth always answers 200; degradation is reported in the body so
// orchestration probes can read partial availability.
func handleHealth(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	status := deps.Service.Health(r.Context())
	overall := "ok"
	if !status.DatabaseReachable {
		overall = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  overall,
		"service": cfg.Service.Name,
		"checks": map[string]bool{
			"database": status.DatabaseReachable,
			"model":    status.ModelConfigured,
		},
	})
}
