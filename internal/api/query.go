package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sqlbridge/sqlbridge/internal/dbconn"
	"github.com/sqlbridge/sqlbridge/internal/executor"
	"github.com/sqlbridge/sqlbridge/internal/orchestrator"
	"github.com/sqlbridge/sqlbridge/internal/schema"
)

type customConnection struct {
	Dialect           string `json:"dialect"`
	Host              string `json:"host"`
	Port              int    `json:"port"`
	Username          string `json:"username"`
	Secret            string `json:"secret"`
	TransportSecurity string `json:"transport_security"`
	CAFile            string `json:"ca_file"`
}

type queryRequest struct {
	Query            string            `json:"query"`
	Database         string            `json:"database"`
	SessionID        string            `json:"session_id"`
	CustomConnection *customConnection `json:"custom_connection"`
}

type queryResponse struct {
	Success         bool            `json:"success"`
	GeneratedSQL    string          `json:"generated_sql"`
	Explanation     string          `json:"explanation"`
	ExecutionResult executor.Result `json:"execution_result"`
	ExecutionTimeMS float64         `json:"execution_time_ms"`
	ModelUsed       string          `json:"model_used"`
	Database        string          `json:"database"`
	SessionID       string          `json:"session_id"`
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION", "query is required", nil)
		return
	}
	if strings.TrimSpace(req.Database) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION", "database is required", nil)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	pipelineReq := orchestrator.QueryRequest{
		Question:  req.Query,
		Database:  req.Database,
		SessionID: req.SessionID,
	}
	if req.CustomConnection != nil {
		profile, err := profileFromRequest(*req.CustomConnection)
		if err != nil {
			writeQueryError(r.Context(), w, err, "")
			return
		}
		pipelineReq.Profile = &profile
	}

	resp, err := deps.Service.Query(r.Context(), pipelineReq)
	if err != nil {
		writeQueryError(r.Context(), w, err, resp.SQL)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Success:         true,
		GeneratedSQL:    resp.SQL,
		Explanation:     resp.Explanation,
		ExecutionResult: resp.Result,
		ExecutionTimeMS: float64(resp.Elapsed.Microseconds()) / 1000,
		ModelUsed:       resp.Model,
		Database:        resp.Database,
		SessionID:       resp.SessionID,
	})
}

func profileFromRequest(conn customConnection) (dbconn.Profile, error) {
	dialect, err := dbconn.ParseDialect(conn.Dialect)
	if err != nil {
		return dbconn.Profile{}, err
	}
	transport, err := dbconn.ParseTransportSecurity(conn.TransportSecurity)
	if err != nil {
		return dbconn.Profile{}, err
	}
	profile := dbconn.Profile{
		Dialect:           dialect,
		Host:              conn.Host,
		Port:              conn.Port,
		User:              conn.Username,
		Secret:            conn.Secret,
		TransportSecurity: transport,
		CAFile:            conn.CAFile,
	}
	if err := profile.Validate(); err != nil {
		return dbconn.Profile{}, err
	}
	return profile, nil
}

// writeQueryError maps pipeline errors onto the HTTP surface: mistakes in
// the request configuration are the caller's (400), unreachable or
// unintrospectable backends are upstream faults (502). Execution errors
// carry the attempted SQL so the caller can show what was run.
func writeQueryError(ctx context.Context, w http.ResponseWriter, err error, generatedSQL string) {
	var configErr *dbconn.ConfigError
	if errors.As(err, &configErr) {
		writeError(ctx, w, http.StatusBadRequest, "CONFIGURATION_ERROR", configErr.Error(), nil)
		return
	}
	var connectErr *dbconn.ConnectError
	if errors.As(err, &connectErr) {
		writeError(ctx, w, http.StatusBadGateway, "BACKEND_UNREACHABLE", connectErr.Error(), nil)
		return
	}
	var schemaErr *schema.Error
	if errors.As(err, &schemaErr) {
		writeError(ctx, w, http.StatusBadGateway, "SCHEMA_INTROSPECTION_FAILED", schemaErr.Error(), nil)
		return
	}
	var execErr *executor.ExecError
	if errors.As(err, &execErr) {
		var extra map[string]any
		if generatedSQL != "" {
			extra = map[string]any{"generated_sql": generatedSQL}
		}
		writeError(ctx, w, http.StatusBadRequest, "EXECUTION_ERROR", execErr.Message, extra)
		return
	}
	writeError(ctx, w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
}
